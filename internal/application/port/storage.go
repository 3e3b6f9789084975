package port

import "context"

// DocumentStorage keeps uploaded document payloads addressed by reference
type DocumentStorage interface {
	Save(ctx context.Context, ref string, content []byte) error
	Read(ctx context.Context, ref string) ([]byte, error)
	Exists(ctx context.Context, ref string) bool
	Delete(ctx context.Context, ref string) error
}

// TextExtractor turns a stored document payload into plain text
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte, mimeType string) (string, error)
}
