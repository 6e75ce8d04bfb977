package services

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"drinkMenuAPI/internal/drink"
	"drinkMenuAPI/internal/storage"
)

var (
	ErrMissingFields = errors.New("title and recipe are required")
	ErrInvalidRecipe = errors.New("invalid recipe")
	ErrDrinkNotFound = errors.New("drink not found")
	ErrTitleTaken    = errors.New("drink title already exists")
	ErrInvalidTitle  = fmt.Errorf("drink title is longer than %d characters", drink.MaxTitleLength)
)

type DrinkService struct {
	store  storage.Store
	logger *logrus.Logger
}

func NewDrinkService(store storage.Store, logger *logrus.Logger) *DrinkService {
	return &DrinkService{
		store:  store,
		logger: logger,
	}
}

func (s *DrinkService) ListDrinks(ctx context.Context) ([]*drink.Drink, error) {
	return s.store.ListDrinks(ctx)
}

func (s *DrinkService) CreateDrink(ctx context.Context, req *drink.CreateDrinkRequest) (*drink.Drink, error) {
	if req.Title == "" || drink.IsFalsy(req.Recipe) {
		return nil, ErrMissingFields
	}
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}

	recipe, err := drink.ParseRecipe(req.Recipe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
	}

	d := &drink.Drink{Title: req.Title, Recipe: recipe}
	if err := s.store.CreateDrink(ctx, d); err != nil {
		return nil, classify(err)
	}

	s.logger.WithFields(logrus.Fields{"drink_id": d.ID, "title": d.Title}).Info("drink created")
	return d, nil
}

// UpdateDrink merges req into the stored drink. A falsy field counts as not
// supplied, so a field can never be cleared through an update.
func (s *DrinkService) UpdateDrink(ctx context.Context, id int64, req *drink.UpdateDrinkRequest) (*drink.Drink, error) {
	d, err := s.store.GetDrink(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	changed := false
	if req.Title != "" && req.Title != d.Title {
		if err := validateTitle(req.Title); err != nil {
			return nil, err
		}
		d.Title = req.Title
		changed = true
	}
	if !drink.IsFalsy(req.Recipe) {
		recipe, err := drink.ParseRecipe(req.Recipe)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
		}
		d.Recipe = recipe
		changed = true
	}

	if !changed {
		return d, nil
	}

	if err := s.store.UpdateDrink(ctx, d); err != nil {
		return nil, classify(err)
	}

	s.logger.WithField("drink_id", d.ID).Info("drink updated")
	return d, nil
}

func (s *DrinkService) DeleteDrink(ctx context.Context, id int64) error {
	if err := s.store.DeleteDrink(ctx, id); err != nil {
		return classify(err)
	}

	s.logger.WithField("drink_id", id).Info("drink deleted")
	return nil
}

func (s *DrinkService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > drink.MaxTitleLength {
		return ErrInvalidTitle
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrDrinkNotFound
	case errors.Is(err, storage.ErrDuplicateTitle):
		return ErrTitleTaken
	default:
		return err
	}
}
