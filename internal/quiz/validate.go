package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/learnstats/internal/apperror"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// finishInput carries the arguments shared by complete and exit
type finishInput struct {
	QuizRunID   string `validate:"required,max=64"`
	DurationSec *int   `validate:"omitnil,gte=0"`
}

// checkStruct runs the field rules of v and reports the first violation
func checkStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		appErr := apperror.BadRequest(fmt.Sprintf("invalid %s", fe.Field()))
		appErr.Details = fmt.Sprintf("field must satisfy %s constraint", strings.TrimSuffix(fe.Tag()+"="+fe.Param(), "="))
		return appErr
	}
	return apperror.BadRequest(err.Error())
}

func validateStart(in StartInput) error {
	return checkStruct(in)
}

func validateAnswer(in AnswerInput) error {
	switch {
	case in.QuizRunID != nil && in.AttemptIndex == nil:
		return apperror.BadRequest("attempt index is required with a quiz run")
	case in.QuizRunID == nil && in.AttemptIndex != nil:
		return apperror.BadRequest("attempt index requires a quiz run")
	case in.QuizRunID != nil && strings.TrimSpace(*in.QuizRunID) == "":
		return apperror.BadRequest("quiz run id must not be empty")
	}
	return checkStruct(in)
}

func validateFinish(runID string, durationSec *int) error {
	return checkStruct(finishInput{QuizRunID: strings.TrimSpace(runID), DurationSec: durationSec})
}
