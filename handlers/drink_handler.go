package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"drinkMenuAPI/internal/drink"
	"drinkMenuAPI/internal/response"
	"drinkMenuAPI/middleware"
	"drinkMenuAPI/services"
)

const maxBodyBytes = 1 << 20

type DrinkHandler struct {
	drinkService *services.DrinkService
	logger       *logrus.Logger
	timeout      time.Duration
}

func NewDrinkHandler(drinkService *services.DrinkService, logger *logrus.Logger, timeout time.Duration) *DrinkHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DrinkHandler{
		drinkService: drinkService,
		logger:       logger,
		timeout:      timeout,
	}
}

// GetDrinks is public and returns the short form.
func (h *DrinkHandler) GetDrinks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	drinks, err := h.drinkService.ListDrinks(ctx)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, drink.DrinksResponse[drink.Short]{
		Success: true,
		Drinks:  drink.ShortList(drinks),
	})
}

func (h *DrinkHandler) GetDrinksDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	drinks, err := h.drinkService.ListDrinks(ctx)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, drink.DrinksResponse[drink.Long]{
		Success: true,
		Drinks:  drink.LongList(drinks),
	})
}

func (h *DrinkHandler) CreateDrink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req drink.CreateDrinkRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest)
		return
	}

	created, err := h.drinkService.CreateDrink(ctx, &req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.logAction(r, "create", created.ID)
	response.JSON(w, http.StatusOK, drink.DrinksResponse[drink.Long]{
		Success: true,
		Drinks:  []drink.Long{created.Long()},
	})
}

func (h *DrinkHandler) UpdateDrink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := drinkID(r)
	if !ok {
		response.Error(w, http.StatusNotFound)
		return
	}

	var req drink.UpdateDrinkRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest)
		return
	}

	updated, err := h.drinkService.UpdateDrink(ctx, id, &req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.logAction(r, "update", updated.ID)
	response.JSON(w, http.StatusOK, drink.DrinksResponse[drink.Long]{
		Success: true,
		Drinks:  []drink.Long{updated.Long()},
	})
}

func (h *DrinkHandler) DeleteDrink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := drinkID(r)
	if !ok {
		response.Error(w, http.StatusNotFound)
		return
	}

	if err := h.drinkService.DeleteDrink(ctx, id); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.logAction(r, "delete", id)
	response.JSON(w, http.StatusOK, drink.DeleteResponse{Success: true, Delete: id})
}

func (h *DrinkHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrMissingFields):
		response.Error(w, http.StatusBadRequest)
	case errors.Is(err, services.ErrDrinkNotFound):
		response.Error(w, http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidRecipe),
		errors.Is(err, services.ErrInvalidTitle),
		errors.Is(err, services.ErrTitleTaken):
		response.Error(w, http.StatusUnprocessableEntity)
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"path":       r.URL.Path,
			"request_id": middleware.RequestIDFromContext(r.Context()),
		}).Error("drink request failed")
		response.Error(w, http.StatusInternalServerError)
	}
}

func (h *DrinkHandler) logAction(r *http.Request, action string, id int64) {
	entry := h.logger.WithFields(logrus.Fields{
		"action":     action,
		"drink_id":   id,
		"request_id": middleware.RequestIDFromContext(r.Context()),
	})
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		entry = entry.WithField("subject", p.Subject)
	}
	entry.Debug("drink changed")
}

var errTrailingData = errors.New("request body must hold a single JSON value")

// decodeBody reads a JSON object body. An empty body decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func drinkID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
