package service

import (
	"errors"
	"fmt"
	"regexp"

	"crew-import/internal/crew"
	"crew-import/internal/models"
)

var (
	nullCompanyPattern = regexp.MustCompile(`(?i)company.*null|App\\+Company, null given`)
	emailTakenPattern  = regexp.MustCompile(`(?i)duplicate entry|email.*(taken|exists|unique)`)
)

// Classification is what a failed create is reduced to before it reaches a
// RowOutcome.
type Classification struct {
	Kind    models.ErrorKind
	Status  int
	Message string
}

// ClassifyUpstream sorts an upstream failure into an ErrorKind. email is the
// row's email, used only when the upstream reports it as taken.
func ClassifyUpstream(err error, email string, line int) Classification {
	var upstreamErr *crew.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return Classification{Kind: models.ErrorKindTransport, Message: err.Error()}
	}

	c := Classification{Status: upstreamErr.Status, Message: upstreamErr.Error()}
	switch status := upstreamErr.Status; {
	case status == 0:
		c.Kind = models.ErrorKindTransport
	case email != "" && status >= 400 && emailTakenPattern.MatchString(upstreamErr.Message):
		c.Kind = models.ErrorKindDuplicateEmail
		c.Message = duplicateEmailMessage(email, line)
	case nullCompanyPattern.MatchString(upstreamErr.Message):
		c.Kind = models.ErrorKindNullCompany
	case status == 422:
		c.Kind = models.ErrorKindValidation
	case status >= 400 && status < 500:
		c.Kind = models.ErrorKindClient
	case status >= 500:
		c.Kind = models.ErrorKindServer
	default:
		c.Kind = models.ErrorKindClient
	}
	return c
}

func duplicateEmailMessage(email string, line int) string {
	return fmt.Sprintf("Duplicate email: %q already exists in the system. Skipped row %d.", email, line)
}
