// Package repo holds what every gorm repository shares: a connection that can
// be rebound to a transaction and the mapping from storage errors to the API
// taxonomy.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

// Base is embedded by domain repositories.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB returns the connection bound to ctx. A nil ctx returns it unbound.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// Tx returns a copy using tx. A nil tx keeps the current connection.
func (b Base) Tx(tx *gorm.DB) Base {
	if tx != nil {
		b.conn = tx
	}
	return b
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Translate maps a storage error onto the taxonomy. Typed errors pass
// through untouched.
func Translate(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMessage)
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "record already exists")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database request interrupted")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "database operation failed")
	}
}
