// Package knowledge defines the in-memory knowledge entries the retriever
// indexes, the audience (user type) model, and the loaders and file formats
// that move entries in and out of storage.
package knowledge

import (
	"strings"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
)

// UserType is the audience of an entry or of a request.
type UserType string

const (
	Estudiante UserType = "estudiante"
	Docente    UserType = "docente"
	Aspirante  UserType = "aspirante"
	Visitante  UserType = "visitante"
	// Todos is the wildcard audience. Entries tagged Todos are visible to
	// every requester.
	Todos UserType = "todos"
)

// UserTypes lists the accepted values in display order.
var UserTypes = []UserType{Estudiante, Docente, Aspirante, Visitante, Todos}

var userTypeAliases = map[string]UserType{
	"estudiante": Estudiante,
	"student":    Estudiante,
	"docente":    Docente,
	"teacher":    Docente,
	"profesor":   Docente,
	"aspirante":  Aspirante,
	"applicant":  Aspirante,
	"visitante":  Visitante,
	"visitor":    Visitante,
	"todos":      Todos,
	"all":        Todos,
}

// ParseUserType maps a boundary value (Spanish or English, any case) to a
// UserType. Blank input returns an error wrapping ErrMissingParameter and
// unknown input a *ValidationError.
func ParseUserType(s string) (UserType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", domerrors.ErrMissingParameter
	}
	if ut, ok := userTypeAliases[key]; ok {
		return ut, nil
	}
	return "", domerrors.NewValueError("tipo_usuario", s, "must be one of estudiante, docente, aspirante, visitante, todos")
}

// Valid reports whether u is one of the canonical values.
func (u UserType) Valid() bool {
	switch u {
	case Estudiante, Docente, Aspirante, Visitante, Todos:
		return true
	}
	return false
}

// Sees reports whether a requester of type u may see an entry tagged
// entryType: exact match or a Todos entry. A Todos requester only sees Todos
// entries.
func (u UserType) Sees(entryType UserType) bool {
	return entryType == u || entryType == Todos
}

func (u UserType) String() string { return string(u) }
