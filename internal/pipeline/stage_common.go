package pipeline

import "github.com/freedkr/moonshot-translate/internal/model"

// isRecoverable reports whether err should be retried with backoff
// rather than immediately failing the material (spec §7).
func isRecoverable(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*model.ProviderRecoverableError)
	return ok
}
