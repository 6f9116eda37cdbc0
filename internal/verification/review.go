package verification

import (
	"time"

	"github.com/greia-app/verification-backend/pkg/db/models"
)

const (
	checkAuthenticity = "authenticity"
	checkExpiry       = "expiry"
	checkQuality      = "quality"
)

// reviewOutcome is the result of the automated check run over a document batch.
type reviewOutcome struct {
	AuthenticityPass bool
	ExpiryPass       bool
	QualityPass      bool
	FailedChecks     []string
}

func (o reviewOutcome) passed() bool {
	return o.AuthenticityPass && o.ExpiryPass && o.QualityPass
}

// runDocumentChecks evaluates the submitted batch. Authenticity and quality
// are structural passes until real scoring providers are integrated; expiry is
// re-checked here even though submission already gated on it, because review
// can run arbitrarily later than submission.
func runDocumentChecks(docs []models.VerificationDocument, now time.Time) reviewOutcome {
	outcome := reviewOutcome{
		AuthenticityPass: true,
		QualityPass:      true,
		ExpiryPass:       true,
	}

	for _, doc := range docs {
		if doc.ExpiryDate != nil && doc.ExpiryDate.Before(now) {
			outcome.ExpiryPass = false
			break
		}
	}

	if !outcome.AuthenticityPass {
		outcome.FailedChecks = append(outcome.FailedChecks, checkAuthenticity)
	}
	if !outcome.ExpiryPass {
		outcome.FailedChecks = append(outcome.FailedChecks, checkExpiry)
	}
	if !outcome.QualityPass {
		outcome.FailedChecks = append(outcome.FailedChecks, checkQuality)
	}

	return outcome
}
