package services

import (
	"context"
	"fmt"
	"moriportal/internal/models"
	"moriportal/internal/storage"
	"slices"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

type EngagementServiceInterface interface {
	Increment(ctx context.Context, subjectID string, kind models.Kind) (int, error)
	Toggle(ctx context.Context, userID, subjectID string, kind models.Kind) (models.ToggleResult, error)
	GetCounts(ctx context.Context, kind models.Kind) (map[string]int, error)
	GetUserToggles(ctx context.Context, userID string, kind models.Kind) ([]string, error)
	IncrementVisits(ctx context.Context) (int, error)
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, patch *models.SettingsPatch) (*models.UserSettings, error)
	Ping(ctx context.Context) error
}

type EngagementService struct {
	store storage.Store
	now   func() time.Time
}

func NewEngagementService(store storage.Store) EngagementServiceInterface {
	return &EngagementService{
		store: store,
		now:   time.Now,
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrStore, op, err)
}

func (es *EngagementService) Increment(ctx context.Context, subjectID string, kind models.Kind) (int, error) {
	if subjectID == "" {
		return 0, fmt.Errorf("%w: empty subject id", models.ErrValidation)
	}

	key := kind.CounterKey(subjectID)
	var count int
	err := es.store.Update(ctx, []string{key}, func(tx storage.Tx) error {
		rec, err := readCounter(tx, key)
		if err != nil {
			return err
		}
		rec.ID = subjectID
		rec.Count++
		count = rec.Count
		return writeCounter(tx, key, rec)
	})
	if err != nil {
		return 0, storeErr("increment", err)
	}
	return count, nil
}

// Toggle flips the user's membership for subjectID and moves the paired
// counter in the same direction. Both keys commit together or not at all.
func (es *EngagementService) Toggle(ctx context.Context, userID, subjectID string, kind models.Kind) (models.ToggleResult, error) {
	var res models.ToggleResult
	if !kind.Toggleable() {
		return res, fmt.Errorf("%w: %s cannot be toggled", models.ErrInvalidKind, kind)
	}
	if userID == "" || subjectID == "" {
		return res, fmt.Errorf("%w: empty user or subject id", models.ErrValidation)
	}

	setKey := kind.ToggleKey(userID)
	counterKey := kind.CounterKey(subjectID)

	err := es.store.Update(ctx, []string{setKey, counterKey}, func(tx storage.Tx) error {
		ids, err := readToggleSet(tx, setKey)
		if err != nil {
			return err
		}
		rec, err := readCounter(tx, counterKey)
		if err != nil {
			return err
		}

		if i := slices.Index(ids, subjectID); i >= 0 {
			ids = slices.Delete(ids, i, i+1)
			rec.Count = max(rec.Count-1, 0)
			res.IsOn = false
		} else {
			ids = append(ids, subjectID)
			rec.Count++
			res.IsOn = true
		}
		rec.ID = subjectID
		res.Count = rec.Count

		raw, err := models.EncodeToggleSet(ids)
		if err != nil {
			return err
		}
		tx.Set(setKey, raw)
		return writeCounter(tx, counterKey, rec)
	})
	if err != nil {
		return models.ToggleResult{}, storeErr("toggle", err)
	}
	return res, nil
}

func (es *EngagementService) GetCounts(ctx context.Context, kind models.Kind) (map[string]int, error) {
	prefix := kind.CounterPrefix()
	entries, err := es.store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, storeErr("scan counts", err)
	}

	counts := make(map[string]int, len(entries))
	for key, raw := range entries {
		rec, err := models.DecodeCounter(raw)
		if err != nil {
			continue
		}
		id := rec.ID
		if id == "" {
			id = strings.TrimPrefix(key, prefix)
		}
		counts[id] = rec.Count
	}
	return counts, nil
}

func (es *EngagementService) GetUserToggles(ctx context.Context, userID string, kind models.Kind) ([]string, error) {
	if !kind.Toggleable() {
		return nil, fmt.Errorf("%w: %s has no user set", models.ErrInvalidKind, kind)
	}
	raw, ok, err := es.store.Get(ctx, kind.ToggleKey(userID))
	if err != nil {
		return nil, storeErr("get toggles", err)
	}
	if !ok {
		return []string{}, nil
	}
	ids, _ := models.DecodeToggleSet(raw)
	return ids, nil
}

func (es *EngagementService) IncrementVisits(ctx context.Context) (int, error) {
	var count int
	err := es.store.Update(ctx, []string{models.VisitCountKey}, func(tx storage.Tx) error {
		raw, _, err := tx.Get(models.VisitCountKey)
		if err != nil {
			return err
		}
		count = max(cast.ToInt(strings.Trim(string(raw), `" `)), 0) + 1
		tx.Set(models.VisitCountKey, []byte(strconv.Itoa(count)))
		return nil
	})
	if err != nil {
		return 0, storeErr("increment visits", err)
	}
	return count, nil
}

// GetSettings returns nil when the user never saved settings.
func (es *EngagementService) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	raw, ok, err := es.store.Get(ctx, models.SettingsKey(userID))
	if err != nil {
		return nil, storeErr("get settings", err)
	}
	if !ok {
		return nil, nil
	}
	var s models.UserSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, storeErr("decode settings", err)
	}
	return &s, nil
}

func (es *EngagementService) SaveSettings(ctx context.Context, userID string, patch *models.SettingsPatch) (*models.UserSettings, error) {
	if patch == nil || patch.DailyLimitMinutes == nil {
		return nil, fmt.Errorf("%w: dailyLimitMinutes is required", models.ErrValidation)
	}

	key := models.SettingsKey(userID)
	var saved models.UserSettings
	err := es.store.Update(ctx, []string{key}, func(tx storage.Tx) error {
		raw, ok, err := tx.Get(key)
		if err != nil {
			return err
		}
		current := models.UserSettings{DailyLimitMinutes: models.DefaultDailyLimitMinutes}
		if ok {
			// An unreadable document is replaced by the patch on top of defaults.
			_ = json.Unmarshal(raw, &current)
		}
		patch.Apply(&current, es.now().UTC())

		out, err := json.Marshal(current)
		if err != nil {
			return err
		}
		tx.Set(key, out)
		saved = current
		return nil
	})
	if err != nil {
		return nil, storeErr("save settings", err)
	}
	return &saved, nil
}

func (es *EngagementService) Ping(ctx context.Context) error {
	return es.store.Ping(ctx)
}

// readCounter treats an unreadable value as zero so one corrupt key cannot
// wedge every later write to it.
func readCounter(tx storage.Tx, key string) (models.CounterRecord, error) {
	raw, ok, err := tx.Get(key)
	if err != nil || !ok {
		return models.CounterRecord{}, err
	}
	rec, decodeErr := models.DecodeCounter(raw)
	if decodeErr != nil {
		return models.CounterRecord{}, nil
	}
	return rec, nil
}

func writeCounter(tx storage.Tx, key string, rec models.CounterRecord) error {
	raw, err := models.EncodeCounter(rec)
	if err != nil {
		return err
	}
	tx.Set(key, raw)
	return nil
}

func readToggleSet(tx storage.Tx, key string) ([]string, error) {
	raw, ok, err := tx.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	ids, _ := models.DecodeToggleSet(raw)
	return ids, nil
}
