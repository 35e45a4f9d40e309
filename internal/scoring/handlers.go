package scoring

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudscore/internal/feature"
	"github.com/mbd888/fraudscore/internal/idgen"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/model"
)

const maxBatchSize = 500

// ResultSink receives completed scoring results for persistence and
// broadcast. Published is called off the request path; implementations own
// their error handling.
type ResultSink interface {
	Published(txn feature.Transaction, res Result)
}

// Reloader produces a fresh classifier when the reload endpoint is hit.
type Reloader func() (model.Classifier, error)

// Handler provides the HTTP endpoints for scoring and model management.
type Handler struct {
	engine *Engine
	sink   ResultSink
	reload Reloader
}

func NewHandler(engine *Engine, sink ResultSink, reload Reloader) *Handler {
	return &Handler{engine: engine, sink: sink, reload: reload}
}

// RegisterRoutes sets up scoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/predict", h.Predict)
	r.POST("/predict/batch", h.PredictBatch)
	r.GET("/model/info", h.ModelInfo)
	r.POST("/model/reload", h.ReloadModel)
	r.GET("/engine/stats", h.EngineStats)
}

// predictRequest mirrors the transaction feed's field names, spaces and all.
type predictRequest struct {
	User          *int64   `json:"User"`
	Card          *int64   `json:"Card"`
	Amount        *float64 `json:"Amount"`
	MerchantName  *int64   `json:"Merchant Name"`
	MerchantCity  string   `json:"Merchant City"`
	MerchantState string   `json:"Merchant State"`
	MCC           int      `json:"MCC"`
	UseChip       string   `json:"Use Chip"`
	DateTime      string   `json:"DateTime"`
}

// timestamp formats accepted on the feed, tried in order.
var timeFormats = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func (r *predictRequest) transaction() (feature.Transaction, error) {
	if r.User == nil || r.Card == nil {
		return feature.Transaction{}, validationError("User and Card are required")
	}
	if r.Amount == nil {
		return feature.Transaction{}, validationError("Amount is required")
	}
	if r.MerchantName == nil {
		return feature.Transaction{}, validationError("Merchant Name is required")
	}

	txn := feature.Transaction{
		ID:        idgen.WithPrefix("txn_"),
		User:      *r.User,
		Card:      *r.Card,
		Amount:    *r.Amount,
		Merchant:  *r.MerchantName,
		City:      r.MerchantCity,
		State:     r.MerchantState,
		MCC:       r.MCC,
		EntryMode: r.UseChip,
	}
	if r.DateTime != "" {
		var parsed time.Time
		var err error
		for _, layout := range timeFormats {
			parsed, err = time.Parse(layout, r.DateTime)
			if err == nil {
				break
			}
		}
		if err != nil {
			return feature.Transaction{}, validationError("unparseable DateTime %q", r.DateTime)
		}
		txn.Timestamp = parsed
	}
	return txn, nil
}

// Predict handles POST /api/predict
func (h *Handler) Predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   CodeValidation,
			"message": "invalid JSON body: " + err.Error(),
		})
		return
	}

	txn, err := req.transaction()
	if err != nil {
		h.renderError(c, err)
		return
	}

	res, err := h.engine.Score(c.Request.Context(), txn)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if h.sink != nil {
		go h.sink.Published(txn, res)
	}

	if c.Query("include_features") != "true" {
		res.Features = nil
	}
	c.JSON(http.StatusOK, res)
}

type batchRequest struct {
	Transactions []predictRequest `json:"transactions"`
}

// PredictBatch handles POST /api/predict/batch
func (h *Handler) PredictBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   CodeValidation,
			"message": "invalid JSON body: " + err.Error(),
		})
		return
	}
	if len(req.Transactions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   CodeValidation,
			"message": "transactions list is empty",
		})
		return
	}
	if len(req.Transactions) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   CodeValidation,
			"message": "batch exceeds maximum size",
		})
		return
	}

	results := make([]gin.H, 0, len(req.Transactions))
	succeeded := 0
	for i := range req.Transactions {
		txn, err := req.Transactions[i].transaction()
		if err == nil {
			var res Result
			res, err = h.engine.Score(c.Request.Context(), txn)
			if err == nil {
				if h.sink != nil {
					go h.sink.Published(txn, res)
				}
				res.Features = nil
				results = append(results, gin.H{"result": res})
				succeeded++
				continue
			}
		}
		results = append(results, gin.H{
			"error":   ErrCode(err),
			"message": err.Error(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"total":     len(req.Transactions),
		"succeeded": succeeded,
		"failed":    len(req.Transactions) - succeeded,
	})
}

// ModelInfo handles GET /api/model/info
func (h *Handler) ModelInfo(c *gin.Context) {
	info, err := h.engine.Model().Info()
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ReloadModel handles POST /api/model/reload
func (h *Handler) ReloadModel(c *gin.Context) {
	if h.reload == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   CodeInternal,
			"message": "model reload is not configured",
		})
		return
	}

	clf, err := h.reload()
	if err != nil {
		metrics.ModelReloadsTotal.WithLabelValues("error").Inc()
		logging.L(c.Request.Context()).Error("model reload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   CodeInternal,
			"message": err.Error(),
		})
		return
	}

	h.engine.Model().Swap(clf)
	metrics.ModelReloadsTotal.WithLabelValues("ok").Inc()
	logging.L(c.Request.Context()).Info("model reloaded",
		"version", clf.Info().Version, "features", clf.Info().FeatureCount)

	c.JSON(http.StatusOK, clf.Info())
}

// EngineStats handles GET /api/engine/stats
func (h *Handler) EngineStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

func (h *Handler) renderError(c *gin.Context, err error) {
	code := ErrCode(err)
	status := http.StatusInternalServerError
	switch code {
	case CodeValidation:
		status = http.StatusBadRequest
	case CodeModelNotReady, CodeClassifierUnavailable:
		status = http.StatusServiceUnavailable
	case CodeClassifierTimeout:
		status = http.StatusGatewayTimeout
	case CodeClassifierError:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
