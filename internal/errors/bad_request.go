package errors

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func AbortWithBadRequest(c *gin.Context, message string, details map[string]interface{}) {
	abort(c, http.StatusBadRequest, message, details)
}

func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusBadRequest, &APIError{Error: message, Details: details})
}

// ValidationFailed sends a 400 response describing which fields failed binding.
func ValidationFailed(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, "validation failed", ValidationDetails(err))
}

// ValidationDetails converts a binding error into a field -> rule map.
// Errors that are not validator errors (e.g. malformed JSON) are reported under "body".
func ValidationDetails(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return map[string]interface{}{"body": err.Error()}
	}

	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[toSnake(fe.Field())] = rule
	}
	return map[string]interface{}{"fields": fields}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
