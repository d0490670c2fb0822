package attachments

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/tracmark/internal/models"
)

// imageRef matches [[Image(file.ext)]] with optional trailing options.
var imageRef = regexp.MustCompile(`\[\[Image\(\s*([^,()\n]+?\.\w+)\s*(,[^)\n]*)?\)\]\]`)

// Copier places a source file at a destination relative to the attachments
// root, creating directories as needed.
type Copier interface {
	CopyFile(dst, src string) error
}

// CopyError reports an attachment that could not be relocated.
type CopyError struct {
	Filename    string
	Document    string
	Destination string
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy attachment %q of %q to %q: %v", e.Filename, e.Document, e.Destination, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Resolver rewrites image directives to Markdown images and copies every
// attachment of the page to the output tree.
type Resolver struct {
	inv       *Inventory
	copier    Copier
	urlPrefix string
}

// NewResolver creates a Resolver. urlPrefix is the link root the copied
// files are served under, for example "/Attachments".
func NewResolver(inv *Inventory, copier Copier, urlPrefix string) *Resolver {
	return &Resolver{
		inv:       inv,
		copier:    copier,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}
}

// Resolve handles every image directive of text, then copies the attachments
// that were never referenced and discards the page's inventory entry.
func (r *Resolver) Resolve(ctx context.Context, page, text string) (string, []models.Diagnostic, error) {
	var (
		diags   []models.Diagnostic
		copyErr error
	)

	out := imageRef.ReplaceAllStringFunc(text, func(match string) string {
		if copyErr != nil {
			return match
		}
		filename := strings.TrimSpace(imageRef.FindStringSubmatch(match)[1])

		src, pending, known := r.inv.lookup(page, filename)
		if !known {
			diags = append(diags, models.Diagnostic{
				Document: page,
				Kind:     models.KindAttachmentMissing,
				Subject:  filename,
				Message:  "image references an attachment the page does not have",
			})
			return match
		}

		target := destination(page, filename)
		if pending {
			if copyErr = r.copy(ctx, page, filename, target, src); copyErr != nil {
				return match
			}
		}
		return "![" + filename + "](" + r.urlPrefix + "/" + target + ")"
	})
	if copyErr != nil {
		return text, diags, copyErr
	}

	for _, filename := range r.inv.Pending(page) {
		src, _, _ := r.inv.lookup(page, filename)
		if err := r.copy(ctx, page, filename, destination(page, filename), src); err != nil {
			return text, diags, err
		}
	}
	r.inv.Discard(page)

	return out, diags, nil
}

func (r *Resolver) copy(ctx context.Context, page, filename, target, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.copier.CopyFile(target, src); err != nil {
		return &CopyError{Filename: filename, Document: page, Destination: target, Err: err}
	}
	r.inv.done(page, filename)
	return nil
}

// destination is the slash-separated path of an attachment below the
// attachments root. Whitespace is removed from the filename.
func destination(page, filename string) string {
	return path.Join(page, strings.Join(strings.Fields(filename), ""))
}
