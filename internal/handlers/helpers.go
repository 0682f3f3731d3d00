package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/http_wrappers"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

func CreatePage(total int, offset int, limit int, ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper) (*api.Page, error) {
	// Calculate pagination info

	hasNext := offset+limit < total
	var nextHref *api.HRef
	if hasNext {
		href, err := url.Parse(r.URI())
		if err != nil {
			ctx.Logger.Error("Failed to parse request URI", "uri", r.URI(), "error", err)
			return nil, serviceerrors.NewServiceError(messages.InternalServerError, "Error", err.Error())
		}
		q := href.Query()
		q.Set(constants.QUERY_PARAMETER_OFFSET, strconv.Itoa(offset+limit))
		href.RawQuery = q.Encode()
		nextHref = &api.HRef{Href: href.String()}
	}

	return &api.Page{
		First:      &api.HRef{Href: r.URI()},
		Next:       nextHref,
		Limit:      limit,
		TotalCount: total,
	}, nil
}

func getQueryValue(r http_wrappers.RequestWrapper, name string) string {
	values := r.Query(name)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func getIntQuery(r http_wrappers.RequestWrapper, name string, defaultValue int, min int, max int) (int, error) {
	value := getQueryValue(r, name)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < min || (max > 0 && n > max) {
		return 0, serviceerrors.NewServiceError(messages.FieldInvalid, "Field", name, "Error", value)
	}
	return n, nil
}

func getBoolQuery(r http_wrappers.RequestWrapper, name string, defaultValue bool) (bool, error) {
	value := getQueryValue(r, name)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, serviceerrors.NewServiceError(messages.FieldInvalid, "Field", name, "Error", value)
	}
	return b, nil
}

// getPageParams reads limit, offset and the optional state filter
func getPageParams(r http_wrappers.RequestWrapper) (limit int, offset int, state string, err error) {
	limit, err = getIntQuery(r, constants.QUERY_PARAMETER_LIMIT, constants.DefaultPageLimit, 1, constants.MaxPageLimit)
	if err != nil {
		return 0, 0, "", err
	}
	offset, err = getIntQuery(r, constants.QUERY_PARAMETER_OFFSET, 0, 0, 0)
	if err != nil {
		return 0, 0, "", err
	}
	state = getQueryValue(r, constants.QUERY_PARAMETER_STATE)
	if state != "" {
		if _, err := api.GetLifecycleState(state); err != nil {
			return 0, 0, "", serviceerrors.NewServiceError(messages.FieldInvalid, "Field", constants.QUERY_PARAMETER_STATE, "Error", state)
		}
	}
	return limit, offset, state, nil
}

func getRunID(r http_wrappers.RequestWrapper) (string, error) {
	runID := r.RunID()
	if runID == "" {
		return "", serviceerrors.NewServiceError(messages.MissingPathParameter, "ParameterName", constants.PATH_PARAMETER_RUN_ID)
	}
	return runID, nil
}
