package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/starlitlog/dr-web-engine/cache"
	"github.com/starlitlog/dr-web-engine/evaluator"
	"github.com/starlitlog/dr-web-engine/models"
	"github.com/starlitlog/dr-web-engine/queryfile"
)

// Batch returns a handler for POST /api/v1/query/batch: evaluate the same
// query document once per requested start URL, concurrently, and return one
// QueryResponse per URL in request order. Evaluation runs synchronously
// within the request; there is no background job store or status polling.
func Batch(ev *evaluator.Evaluator, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.BatchResponse{
				Results: []models.QueryResponse{{
					Success: false,
					Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
				}},
			})
			return
		}

		if len(req.StartURLs) == 0 {
			c.JSON(http.StatusBadRequest, models.BatchResponse{
				Results: []models.QueryResponse{{
					Success: false,
					Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "start_urls must not be empty"},
				}},
			})
			return
		}

		results := make([]models.QueryResponse, len(req.StartURLs))
		var wg sync.WaitGroup
		for i, startURL := range req.StartURLs {
			wg.Add(1)
			go func(i int, startURL string) {
				defer wg.Done()
				results[i] = runOne(c, ev, cc, req.Document, startURL, req.Strict)
			}(i, startURL)
		}
		wg.Wait()

		c.JSON(http.StatusOK, models.BatchResponse{Results: results})
	}
}

// runOne overrides the document's start_url with startURL and evaluates it,
// so one batch template can drive many targets without each needing its own
// full document.
func runOne(c *gin.Context, ev *evaluator.Evaluator, cc *cache.Cache, document json.RawMessage, startURL string, strict bool) models.QueryResponse {
	var tree map[string]any
	if err := json.Unmarshal(document, &tree); err != nil {
		return models.QueryResponse{Success: false, Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()}}
	}
	tree["start_url"] = startURL
	overridden, err := json.Marshal(tree)
	if err != nil {
		return models.QueryResponse{Success: false, Error: &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}}
	}

	q, err := queryfile.DecodeJSON(overridden)
	if err != nil {
		return models.QueryResponse{Success: false, Error: models.ErrorDetailFromErr(err)}
	}

	var key string
	if cc != nil {
		key = cache.Key(q.StartURL, q)
		if cached, hit := cc.Get(key); hit {
			if result, ok := cached.(*evaluator.Result); ok {
				return toQueryResponse(result, nil)
			}
		}
	}

	result, err := ev.Run(c.Request.Context(), q, strict)
	if err == nil && cc != nil {
		cc.Set(key, result)
	}
	return toQueryResponse(result, err)
}
