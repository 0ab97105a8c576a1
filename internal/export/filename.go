package export

import "context"

// NameTranslator renames a source filename for the "translated" side
// of an export pair (spec §4.7: "may be obtained by running the
// source name through a filename-translation helper"). It is an
// external collaborator; failure must preserve the source name rather
// than abort the export.
type NameTranslator interface {
	Translate(ctx context.Context, sourceName string) (string, error)
}

// IdentityTranslator is the zero-value fallback: it returns names
// unchanged. Used when no external translation helper is configured.
type IdentityTranslator struct{}

func (IdentityTranslator) Translate(_ context.Context, sourceName string) (string, error) {
	return sourceName, nil
}

func translatedName(ctx context.Context, t NameTranslator, sourceName string) string {
	if t == nil {
		return sourceName
	}
	name, err := t.Translate(ctx, sourceName)
	if err != nil || name == "" {
		return sourceName
	}
	return name
}
