// services/seed.go - Built-in catalog
package services

import (
	"lifelog/models"

	"gorm.io/datatypes"
)

// DefaultCatalog returns the stock achievement definitions seeded at
// deployment time. Seeding is upsert-by-name, so shipping tweaks here only
// refreshes descriptive metadata.
func DefaultCatalog() []DefinitionInput {
	return []DefinitionInput{
		{
			Name:        "First Moment",
			Description: "Record your very first moment",
			Category:    "Moments",
			Difficulty:  "bronze",
			Points:      10,
			Type:        models.ConditionCount,
			Target:      1,
			Field:       models.FieldMoments,
		},
		{
			Name:        "Storyteller",
			Description: "Record 100 moments",
			Category:    "Moments",
			Difficulty:  "silver",
			Points:      50,
			Type:        models.ConditionCount,
			Target:      100,
			Field:       models.FieldMoments,
		},
		{
			Name:        "Globetrotter",
			Description: "Log moments from 10 different places",
			Category:    "Places",
			Difficulty:  "gold",
			Points:      75,
			Type:        models.ConditionCount,
			Target:      10,
			Field:       models.FieldLocations,
		},
		{
			Name:        "Week Streak",
			Description: "Stay active seven days in a row",
			Category:    "Streak",
			Difficulty:  "silver",
			Points:      40,
			Type:        models.ConditionStreak,
			Target:      7,
			Field:       models.FieldActiveDays,
		},
		{
			Name:        "Early Riser",
			Description: "Record a moment before 6 AM",
			Category:    "Special",
			Difficulty:  "bronze",
			Points:      15,
			Type:        models.ConditionMilestone,
			Target:      1,
			Field:       "early_morning",
			Params:      datatypes.JSONMap{"before_hour": 6},
		},
		{
			Name:         "Fresh Start",
			Description:  "Record a moment on New Year's Day",
			Category:     "Special",
			Difficulty:   "bronze",
			Points:       20,
			Type:         models.ConditionMilestone,
			Target:       1,
			Field:        "new_year",
			Params:       datatypes.JSONMap{"month": 1, "day": 1},
			IsRepeatable: true,
		},
		{
			Name:        "Night Owl",
			Description: "Record five late-night moments",
			Category:    "Special",
			Difficulty:  "silver",
			Points:      30,
			Type:        models.ConditionCustom,
			Target:      5,
			Field:       "night_owl",
		},
		{
			Name:        "Social Butterfly",
			Description: "Share or react 25 times",
			Category:    "Social",
			Difficulty:  "silver",
			Points:      35,
			Type:        models.ConditionCount,
			Target:      25,
			Field:       models.FieldInteractions,
		},
	}
}
