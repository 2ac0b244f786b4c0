package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
)

var registerOnce sync.Once

// registerValidators adds the custom binding rules to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("usertype", validateUserType)
	})
}

// validateUserType accepts any spelling knowledge.ParseUserType accepts.
// Blank values are left to omitempty.
func validateUserType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" {
		return true
	}
	_, err := knowledge.ParseUserType(s)
	return err == nil
}

// bindingMessage turns a binding failure into a client-facing message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "El cuerpo de la solicitud no es JSON válido."
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s es obligatorio", field)
	case "max":
		return fmt.Sprintf("%s supera el máximo de %s caracteres", field, fe.Param())
	case "usertype":
		return fmt.Sprintf("%s debe ser estudiante, docente, aspirante, visitante o todos", field)
	default:
		return fmt.Sprintf("%s no es válido", field)
	}
}

var jsonFields = map[string]string{
	"Pregunta":    "pregunta",
	"SessionID":   "session_id",
	"TipoUsuario": "tipo_usuario",
	"Query":       "q",
	"Limit":       "limit",
}

func jsonFieldName(structField string) string {
	if name, ok := jsonFields[structField]; ok {
		return name
	}
	return strings.ToLower(structField)
}
