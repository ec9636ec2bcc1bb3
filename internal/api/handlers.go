package api

import (
	stdcontext "context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/metrics"
	"github.com/dalfonso89/travel-assistant-api/internal/middleware"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/ratelimit"
	"github.com/dalfonso89/travel-assistant-api/internal/service"
)

const (
	version    = "1.0.0"
	dateLayout = "2006-01-02"
)

// HandlerConfig contains all dependencies for the Handlers
type HandlerConfig struct {
	Config         *config.Config
	Logger         *logger.Logger
	ListingService *service.ListingService
	RatesService   *service.RatesService
	ChatService    *service.ChatService
	RateLimiter    *ratelimit.Limiter
	Metrics        *metrics.Metrics
}

// Handlers contains all HTTP handlers
type Handlers struct {
	config         *config.Config
	logger         *logger.Logger
	startTime      time.Time
	listingService *service.ListingService
	ratesService   *service.RatesService
	chatService    *service.ChatService
	rateLimiter    *ratelimit.Limiter
	metrics        *metrics.Metrics
}

type healthResponse struct {
	models.HealthCheck
	Providers []service.ProviderStatus `json:"providers"`
}

// NewHandlers creates a new handlers instance with all dependencies
func NewHandlers(handlerConfig HandlerConfig) *Handlers {
	if handlerConfig.Logger == nil {
		handlerConfig.Logger = logger.Discard()
	}
	return &Handlers{
		config:         handlerConfig.Config,
		logger:         handlerConfig.Logger,
		startTime:      time.Now(),
		listingService: handlerConfig.ListingService,
		ratesService:   handlerConfig.RatesService,
		chatService:    handlerConfig.ChatService,
		rateLimiter:    handlerConfig.RateLimiter,
		metrics:        handlerConfig.Metrics,
	}
}

// SetupRoutes configures all the routes using Gin
func (handlers *Handlers) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(handlers.logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	if handlers.metrics != nil {
		router.Use(middleware.RequestCounter(handlers.metrics.HTTPRequest))
	}

	if handlers.rateLimiter != nil {
		router.Use(handlers.rateLimiter.Middleware())
	}

	router.GET("/health", handlers.HealthCheck)
	if handlers.metrics != nil {
		router.GET("/metrics", gin.WrapH(handlers.metrics.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	{
		// Listing waterfalls
		apiV1.GET("/accommodations", handlers.SearchAccommodations)
		apiV1.GET("/foods", handlers.SearchFoods)
		apiV1.GET("/places", handlers.SearchPlaces)
		apiV1.GET("/places/nearby", handlers.SearchNearby)
		apiV1.GET("/geocode", handlers.Geocode)

		// Currency
		apiV1.GET("/rates/:from/:to", handlers.GetRate)
		apiV1.POST("/currency/convert", handlers.Convert)

		apiV1.POST("/chat", handlers.Chat)
	}

	return router
}

// HealthCheck handles health check requests
func (handlers *Handlers) HealthCheck(context *gin.Context) {
	response := healthResponse{
		HealthCheck: models.HealthCheck{
			Status:    "healthy",
			Timestamp: time.Now(),
			Version:   version,
			Uptime:    time.Since(handlers.startTime).String(),
		},
		Providers: []service.ProviderStatus{},
	}
	if handlers.config != nil {
		response.Providers = service.ProviderStatuses(handlers.config)
	}

	context.JSON(http.StatusOK, response)
}

// SearchAccommodations handles GET /api/v1/accommodations
func (handlers *Handlers) SearchAccommodations(context *gin.Context) {
	handlers.searchListings(context, models.KindAccommodation, handlers.listingService.SearchAccommodations)
}

// SearchFoods handles GET /api/v1/foods
func (handlers *Handlers) SearchFoods(context *gin.Context) {
	handlers.searchListings(context, models.KindFood, handlers.listingService.SearchFoods)
}

// SearchPlaces handles GET /api/v1/places
func (handlers *Handlers) SearchPlaces(context *gin.Context) {
	handlers.searchListings(context, models.KindPlace, handlers.listingService.SearchPlaces)
}

type searchFunc func(requestContext stdcontext.Context, query models.SearchQuery, filters models.Filters) ([]models.ListingRecord, error)

func (handlers *Handlers) searchListings(context *gin.Context, kind models.ListingKind, search searchFunc) {
	query, filters, parseError := parseSearch(context, kind)
	if parseError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid query", parseError.Error())
		return
	}

	results, searchError := search(context.Request.Context(), query, filters)
	if searchError != nil {
		handlers.handleServiceError(context, searchError)
		return
	}

	context.JSON(http.StatusOK, models.ListingResponse{
		Kind:     kind,
		Location: query.Location,
		Count:    len(results),
		Results:  results,
	})
}

// SearchNearby handles GET /api/v1/places/nearby?lat=..&lon=..
func (handlers *Handlers) SearchNearby(context *gin.Context) {
	kind := models.ListingKind(context.DefaultQuery("kind", string(models.KindPlace)))
	switch kind {
	case models.KindAccommodation, models.KindFood, models.KindPlace:
	default:
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid query", "kind must be accommodation, food or place")
		return
	}

	latitude, latitudeError := strconv.ParseFloat(context.Query("lat"), 64)
	longitude, longitudeError := strconv.ParseFloat(context.Query("lon"), 64)
	if latitudeError != nil || longitudeError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid query", "lat and lon must be numbers")
		return
	}

	filters, parseError := parseFilters(context)
	if parseError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid query", parseError.Error())
		return
	}

	query := models.SearchQuery{
		Kind:     kind,
		Location: context.Query("location"),
		Cuisine:  context.Query("cuisine"),
		Category: context.Query("category"),
	}
	center := models.Coordinate{Longitude: longitude, Latitude: latitude}

	results, searchError := handlers.listingService.SearchNearby(context.Request.Context(), query, center, filters)
	if searchError != nil {
		handlers.handleServiceError(context, searchError)
		return
	}

	context.JSON(http.StatusOK, models.ListingResponse{
		Kind:     kind,
		Location: query.Location,
		Count:    len(results),
		Results:  results,
	})
}

// Geocode handles GET /api/v1/geocode?place=..&country=..
func (handlers *Handlers) Geocode(context *gin.Context) {
	place := strings.TrimSpace(context.Query("place"))
	if place == "" {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid query", "place is required")
		return
	}

	coordinate := handlers.listingService.ResolveCoordinates(context.Request.Context(), place, context.Query("country"))
	if coordinate == nil {
		handlers.writeErrorResponse(context, http.StatusNotFound, "place not found", place)
		return
	}

	context.JSON(http.StatusOK, coordinate)
}

// GetRate handles GET /api/v1/rates/:from/:to
func (handlers *Handlers) GetRate(context *gin.Context) {
	from, fromError := service.NormalizeCurrencyCode(context.Param("from"))
	to, toError := service.NormalizeCurrencyCode(context.Param("to"))
	if err := errors.Join(fromError, toError); err != nil {
		handlers.handleServiceError(context, err)
		return
	}

	context.JSON(http.StatusOK, handlers.ratesService.GetRate(context.Request.Context(), from, to))
}

// Convert handles POST /api/v1/currency/convert
func (handlers *Handlers) Convert(context *gin.Context) {
	var request models.ConvertRequest
	if bindError := context.ShouldBindJSON(&request); bindError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid request body", bindError.Error())
		return
	}

	conversion, convertError := handlers.ratesService.Convert(context.Request.Context(), request.From, request.To, request.Amount)
	if convertError != nil {
		handlers.handleServiceError(context, convertError)
		return
	}

	context.JSON(http.StatusOK, conversion)
}

// Chat handles POST /api/v1/chat. Model trouble still answers 200 with fallback text.
func (handlers *Handlers) Chat(context *gin.Context) {
	var request models.ChatRequest
	if bindError := context.ShouldBindJSON(&request); bindError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid request body", bindError.Error())
		return
	}

	response, chatError := handlers.chatService.Chat(context.Request.Context(), request)
	if chatError != nil {
		handlers.handleServiceError(context, chatError)
		return
	}

	context.JSON(http.StatusOK, response)
}

// writeErrorResponse writes an error response using Gin context
func (handlers *Handlers) writeErrorResponse(context *gin.Context, statusCode int, errorMessage, errorDetails string) {
	errorResponse := models.ErrorResponse{
		Error:   errorMessage,
		Message: errorDetails,
		Code:    statusCode,
	}

	context.JSON(statusCode, errorResponse)
}

// handleServiceError maps validation failures to 400 and everything else to 500
func (handlers *Handlers) handleServiceError(context *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid query", err.Error())
	case errors.Is(err, service.ErrInvalidCurrencyCode):
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid currency code", err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid amount", err.Error())
	case errors.Is(err, service.ErrEmptyMessage):
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid message", err.Error())
	default:
		handlers.logger.WithField("request_id", context.GetString(middleware.RequestIDKey)).Errorf("Request failed: %v", err)
		handlers.writeErrorResponse(context, http.StatusInternalServerError, "internal error", err.Error())
	}
}
