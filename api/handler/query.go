package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/starlitlog/dr-web-engine/cache"
	"github.com/starlitlog/dr-web-engine/evaluator"
	"github.com/starlitlog/dr-web-engine/models"
	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/queryfile"
	"github.com/starlitlog/dr-web-engine/webhook"
)

// Query returns a handler for POST /api/v1/query: decode the posted query
// document, check the cache, run it through the evaluator, and respond with
// the resulting record tree.
func Query(ev *evaluator.Evaluator, cc *cache.Cache, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.QueryResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		q, err := queryfile.DecodeJSON(req.Document)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.QueryResponse{
				Success: false,
				Error:   models.ErrorDetailFromErr(err),
			})
			return
		}

		var cacheKey string
		if cc != nil {
			cacheKey = cache.Key(q.StartURL, q)
			if cached, hit := cc.Get(cacheKey); hit {
				if result, ok := cached.(*evaluator.Result); ok {
					c.JSON(http.StatusOK, toQueryResponse(result, nil))
					return
				}
			}
		}

		result, err := ev.Run(c.Request.Context(), q, req.Strict)
		resp := toQueryResponse(result, err)
		status := http.StatusOK
		if err != nil {
			status = statusForError(err)
		} else if cc != nil {
			cc.Set(cacheKey, result)
		}

		if req.WebhookURL != "" {
			deliverCompletionWebhook(req.WebhookURL, webhookSecret, q.StartURL, start, result, err)
		}

		c.JSON(status, resp)
	}
}

// deliverCompletionWebhook builds and fires the completion event for one
// evaluation, asynchronously (§4.9[FULL]).
func deliverCompletionWebhook(url, secret, startURL string, start time.Time, result *evaluator.Result, err error) {
	event := &webhook.Event{
		Type:       "evaluation.completed",
		StartURL:   startURL,
		Timestamp:  start.Unix(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		event.Type = "evaluation.failed"
		event.Error = err.Error()
	} else {
		event.Data = result.Records
		if list, ok := result.Records.([]any); ok {
			event.RecordCount = len(list)
		}
	}
	webhook.DeliverAsync(url, secret, event)
}

func toQueryResponse(result *evaluator.Result, err error) models.QueryResponse {
	if err != nil {
		return models.QueryResponse{Success: false, Error: models.ErrorDetailFromErr(err)}
	}
	return models.QueryResponse{
		Success:     true,
		Records:     result.Records,
		Diagnostics: result.Diagnostics,
		DurationMS:  result.DurationMS,
		DriverUsed:  result.DriverUsed,
	}
}

// statusForError maps an evaluator error's taxonomy code to an HTTP status.
func statusForError(err error) int {
	ee, ok := err.(*query.EvalError)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ee.Code {
	case query.ErrUnknownKey, query.ErrSchemaError, query.ErrExpressionSyntaxError:
		return http.StatusBadRequest
	case query.ErrTargetNotFound, query.ErrTargetNotInteractable:
		return http.StatusUnprocessableEntity
	case query.ErrActionTimeout:
		return http.StatusGatewayTimeout
	case query.ErrNavigationError:
		return http.StatusBadGateway
	case query.ErrCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
