// Package handlers holds the HTTP handlers of the REST API. Handlers send
// commands with ids they choose, then read the result back through the
// query bus.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 1 << 20

// base carries what every handler needs.
type base struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errs       *appErrors.ErrorHandler
	logger     *zap.Logger
}

func newBase(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *appErrors.ErrorHandler, logger *zap.Logger) base {
	return base{commandBus: commandBus, queryBus: queryBus, errs: errs, logger: logger}
}

// caller returns the identity placed on the context by the identity middleware.
func (h base) caller(r *http.Request) (common.Caller, error) {
	caller, ok := common.GetCaller(r.Context())
	if !ok || caller.UserID == uuid.Nil {
		return common.Caller{}, appErrors.NewUnauthorizedError("authentication required")
	}
	return caller, nil
}

// decode reads a JSON body into v.
func (h base) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := common.ParseJSONBody(w, r, v, maxJSONBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return appErrors.NewValidationError("request body too large")
		}
		return appErrors.NewValidationError("invalid request body").WithCause(err)
	}
	return nil
}

// pathID parses the chi URL parameter name as a uuid.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, appErrors.NewValidationError(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, appErrors.NewValidationError(fmt.Sprintf("%s must be an integer", name))
	}
	return &v, nil
}
