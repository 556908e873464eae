// services/catalog.go - Administrative catalog operations
package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"lifelog/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CatalogService owns create/update/retire of achievement definitions plus
// the administrative escape hatches (manual grant, backfill, seeding).
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

var validCategories = map[string]bool{
	"Moments": true,
	"Places":  true,
	"Social":  true,
	"Streak":  true,
	"Special": true,
}

var validConditionTypes = map[models.ConditionType]bool{
	models.ConditionCount:     true,
	models.ConditionStreak:    true,
	models.ConditionMilestone: true,
	models.ConditionCustom:    true,
}

// DefinitionInput is the create payload for a catalog entry.
type DefinitionInput struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Category     string               `json:"category"`
	Difficulty   string               `json:"difficulty"`
	Points       int                  `json:"points"`
	Icon         string               `json:"icon"`
	Type         models.ConditionType `json:"type"`
	Target       int                  `json:"target"`
	Field        string               `json:"field"`
	Params       datatypes.JSONMap    `json:"params,omitempty"`
	WindowStart  *time.Time           `json:"window_start,omitempty"`
	WindowEnd    *time.Time           `json:"window_end,omitempty"`
	IsRepeatable bool                 `json:"is_repeatable"`
}

// DefinitionUpdate carries the editable (non-semantic) fields. Condition
// type and target are immutable after publish.
type DefinitionUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Points      *int    `json:"points,omitempty"`
	Difficulty  *string `json:"difficulty,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (s *CatalogService) requireAdmin(actorID uint) error {
	var actor models.User
	if err := s.db.First(&actor, actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "user", ID: actorID}
		}
		return err
	}
	if !actor.IsAdmin {
		return &PermissionError{Msg: "administrator privileges required"}
	}
	return nil
}

func validateDefinitionInput(in DefinitionInput) error {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return &ValidationError{Msg: "name is required"}
	case len(name) > 50:
		return &ValidationError{Msg: "name must be 50 characters or fewer"}
	case in.Points <= 0:
		return &ValidationError{Msg: "points must be positive"}
	case in.Target <= 0:
		return &ValidationError{Msg: "target must be positive"}
	case !validConditionTypes[in.Type]:
		return &ValidationError{Msg: "unknown condition type: " + string(in.Type)}
	case !validCategories[in.Category]:
		return &ValidationError{Msg: "unknown category: " + in.Category}
	}
	if in.WindowStart != nil && in.WindowEnd != nil && in.WindowEnd.Before(*in.WindowStart) {
		return &ValidationError{Msg: "active window end precedes its start"}
	}
	return nil
}

// CreateDefinition validates and publishes a new catalog entry.
func (s *CatalogService) CreateDefinition(actorID uint, in DefinitionInput) (*models.AchievementDefinition, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}
	if err := validateDefinitionInput(in); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	var count int64
	if err := s.db.Model(&models.AchievementDefinition{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &ConflictError{Msg: "achievement name already exists: " + name}
	}

	def := models.AchievementDefinition{
		Name:        name,
		Description: in.Description,
		Category:    in.Category,
		Difficulty:  in.Difficulty,
		Points:      in.Points,
		Icon:        in.Icon,
		Condition: models.ConditionSpec{
			Type:   in.Type,
			Target: in.Target,
			Field:  in.Field,
			Params: in.Params,
		},
		WindowStart:  in.WindowStart,
		WindowEnd:    in.WindowEnd,
		IsRepeatable: in.IsRepeatable,
		IsActive:     true,
	}
	if def.Difficulty == "" {
		def.Difficulty = "bronze"
	}

	if err := s.db.Create(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// UpdateDefinition edits descriptive metadata only. Edits never rewrite
// frozen snapshots; points changes apply to future completions.
func (s *CatalogService) UpdateDefinition(actorID, defID uint, upd DefinitionUpdate) (*models.AchievementDefinition, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}

	var def models.AchievementDefinition
	if err := s.db.First(&def, defID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "achievement definition", ID: defID}
		}
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, &ValidationError{Msg: "name is required"}
		}
		if len(name) > 50 {
			return nil, &ValidationError{Msg: "name must be 50 characters or fewer"}
		}
		var count int64
		err := s.db.Model(&models.AchievementDefinition{}).
			Where("name = ? AND id <> ?", name, defID).Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, &ConflictError{Msg: "achievement name already exists: " + name}
		}
		def.Name = name
	}
	if upd.Description != nil {
		def.Description = *upd.Description
	}
	if upd.Points != nil {
		if *upd.Points <= 0 {
			return nil, &ValidationError{Msg: "points must be positive"}
		}
		def.Points = *upd.Points
	}
	if upd.Difficulty != nil {
		def.Difficulty = *upd.Difficulty
	}
	if upd.Icon != nil {
		def.Icon = *upd.Icon
	}
	if upd.IsActive != nil {
		def.IsActive = *upd.IsActive
	}

	if err := s.db.Save(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// RetireDefinition withdraws a definition and cascades over its records:
// untouched records are removed, in-flight ones are expired, achieved ones
// keep their frozen snapshots.
func (s *CatalogService) RetireDefinition(actorID, defID uint) error {
	if err := s.requireAdmin(actorID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var def models.AchievementDefinition
		if err := tx.First(&def, defID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "achievement definition", ID: defID}
			}
			return err
		}

		err := tx.Where("definition_id = ? AND status = ?", defID, models.StatusNotStarted).
			Delete(&models.ProgressRecord{}).Error
		if err != nil {
			return err
		}

		now := time.Now()
		err = tx.Model(&models.ProgressRecord{}).
			Where("definition_id = ? AND status = ?", defID, models.StatusInProgress).
			Updates(map[string]interface{}{
				"status":     models.StatusExpired,
				"expired_at": now,
				"version":    gorm.Expr("version + 1"),
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&def).Update("is_active", false).Error
	})
}

// GrantAchievement force-completes a record, bypassing the evaluator.
func (s *CatalogService) GrantAchievement(actorID, userID, defID uint, reason string) (*models.ProgressRecord, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return nil, err
	}

	var granted models.ProgressRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var def models.AchievementDefinition
		if err := tx.First(&def, defID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "achievement definition", ID: defID}
			}
			return err
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "user", ID: userID}
			}
			return err
		}

		rec := models.ProgressRecord{
			UserID:       userID,
			DefinitionID: defID,
			Status:       models.StatusNotStarted,
			Target:       def.Condition.Target,
		}
		if err := tx.Where("user_id = ? AND definition_id = ?", userID, defID).FirstOrCreate(&rec).Error; err != nil {
			return err
		}
		if rec.Status == models.StatusAchieved {
			return &ConflictError{Msg: "achievement already granted"}
		}

		now := time.Now()
		rec.Current = rec.Target
		rec.MarkAchieved(&def, &user, now)
		rec.GrantedBy = &actorID
		rec.GrantReason = reason

		err := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("total_points", gorm.Expr("total_points + ?", def.Points)).Error
		if err != nil {
			return err
		}

		if err := persistRecord(tx, &rec); err != nil {
			return err
		}
		granted = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &granted, nil
}

// backfillBatch is the page size for record backfill.
const backfillBatch = 500

// BackfillDefinition creates not_started records for every existing user of
// a newly published definition. Resumable: creation is upsert-style, so a
// rerun by definition id picks up where it stopped.
func (s *CatalogService) BackfillDefinition(actorID, defID uint) (int, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return 0, err
	}

	var def models.AchievementDefinition
	if err := s.db.First(&def, defID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &NotFoundError{Resource: "achievement definition", ID: defID}
		}
		return 0, err
	}

	created := 0
	lastID := uint(0)
	for {
		var users []models.User
		err := s.db.Where("id > ?", lastID).Order("id ASC").Limit(backfillBatch).Find(&users).Error
		if err != nil {
			return created, err
		}
		if len(users) == 0 {
			return created, nil
		}

		for _, u := range users {
			rec := models.ProgressRecord{
				UserID:       u.ID,
				DefinitionID: def.ID,
				Status:       models.StatusNotStarted,
				Target:       def.Condition.Target,
			}
			res := s.db.Where("user_id = ? AND definition_id = ?", u.ID, def.ID).FirstOrCreate(&rec)
			if res.Error != nil {
				return created, res.Error
			}
			if res.RowsAffected > 0 {
				created++
			}
			lastID = u.ID
		}
	}
}

// ListDefinitions returns the full catalog, newest first.
func (s *CatalogService) ListDefinitions() ([]models.AchievementDefinition, error) {
	var defs []models.AchievementDefinition
	err := s.db.Order("created_at DESC").Find(&defs).Error
	return defs, err
}

// SeedDefinitions upserts catalog entries by name. Invoked at deployment
// time; existing entries only refresh their descriptive metadata so
// published condition semantics stay put.
func (s *CatalogService) SeedDefinitions(inputs []DefinitionInput) error {
	for _, in := range inputs {
		if err := validateDefinitionInput(in); err != nil {
			return err
		}

		var existing models.AchievementDefinition
		err := s.db.Where("name = ?", strings.TrimSpace(in.Name)).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			def := models.AchievementDefinition{
				Name:        strings.TrimSpace(in.Name),
				Description: in.Description,
				Category:    in.Category,
				Difficulty:  in.Difficulty,
				Points:      in.Points,
				Icon:        in.Icon,
				Condition: models.ConditionSpec{
					Type:   in.Type,
					Target: in.Target,
					Field:  in.Field,
					Params: in.Params,
				},
				WindowStart:  in.WindowStart,
				WindowEnd:    in.WindowEnd,
				IsRepeatable: in.IsRepeatable,
				IsActive:     true,
			}
			if def.Difficulty == "" {
				def.Difficulty = "bronze"
			}
			if err := s.db.Create(&def).Error; err != nil {
				return err
			}
			log.Printf("✅ seeded achievement %q", def.Name)
		case err != nil:
			return err
		default:
			err := s.db.Model(&existing).Updates(map[string]interface{}{
				"description": in.Description,
				"points":      in.Points,
				"icon":        in.Icon,
			}).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}
