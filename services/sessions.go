package services

import (
	"context"
	"fmt"
	"time"

	"content-unlock-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionService persists the front-end's per-user navigation state.
type SessionService struct {
	*Store
	Catalog Catalog
}

func NewSessionService(st *Store, catalog Catalog) *SessionService {
	return &SessionService{Store: st, Catalog: catalog}
}

// Transition maps an event onto the next state. Every state accepts every
// defined event; OpenItem needs an item.
func Transition(ev models.SessionEvent, itemID *int64) (models.SessionState, *int64, error) {
	switch ev {
	case models.EventStart, models.EventBackToMenu:
		return models.SessionMenu, nil, nil
	case models.EventOpenItem:
		if itemID == nil {
			return "", nil, fmt.Errorf("%w: %s requires an item", ErrInvalidTransition, ev)
		}
		id := *itemID
		return models.SessionViewingItem, &id, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
}

// Current returns the stored session, or a fresh Menu session.
func (s *SessionService) Current(ctx context.Context, userID int64) (*models.Session, error) {
	var sessions []models.Session
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Limit(1).Find(&sessions).Error
	})
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", userID, err)
	}
	if len(sessions) == 0 {
		return &models.Session{UserID: userID, State: models.SessionMenu}, nil
	}
	return &sessions[0], nil
}

// Apply transitions the user's session and stores the result. Opening an
// item that is not in the catalog fails with ErrUnknownItem and leaves the
// session as it was.
func (s *SessionService) Apply(ctx context.Context, userID int64, ev models.SessionEvent, itemID *int64) (*models.Session, error) {
	state, item, err := Transition(ev, itemID)
	if err != nil {
		return nil, err
	}
	if item != nil {
		if _, err := s.Catalog.Lookup(ctx, *item); err != nil {
			return nil, err
		}
	}
	sess := models.Session{
		UserID:    userID,
		State:     state,
		ItemID:    item,
		UpdatedAt: time.Now().UTC(),
	}
	err = s.write(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "item_id", "updated_at"}),
		}).Create(&sess).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save session %d: %w", userID, err)
	}
	return &sess, nil
}
