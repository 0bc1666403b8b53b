package dbschema

import (
	"encoding/json"

	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"

	"gorm.io/datatypes"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Provider{})
}

type Provider struct {
	BaseModel
	Code         string         `gorm:"size:64;not null;uniqueIndex"`
	DisplayName  string         `gorm:"size:255;not null"`
	Enabled      *bool          `gorm:"not null;default:true"`
	Adapter      string         `gorm:"size:64;not null"`
	Endpoint     string         `gorm:"size:512;not null"`
	DefaultModel string         `gorm:"size:255;not null"`
	Config       datatypes.JSON `gorm:"type:jsonb"`
}

func NewSchemaProvider(p *provider.Provider) *Provider {
	configJSON := datatypes.JSON("{}")
	if len(p.Config) > 0 {
		if data, err := json.Marshal(p.Config); err == nil {
			configJSON = datatypes.JSON(data)
		}
	}
	enabled := p.Enabled
	return &Provider{
		BaseModel: BaseModel{
			ID:        p.ID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		Code:         p.Code,
		DisplayName:  p.DisplayName,
		Enabled:      &enabled,
		Adapter:      p.Adapter,
		Endpoint:     p.Endpoint,
		DefaultModel: p.DefaultModel,
		Config:       configJSON,
	}
}

// EtoD converts a database provider into its domain representation.
func (p *Provider) EtoD() *provider.Provider {
	var cfg provider.Config
	if len(p.Config) > 0 {
		if err := json.Unmarshal(p.Config, &cfg); err != nil {
			log := logger.GetLogger()
			log.Error().Msgf("failed to unmarshal provider config for provider ID %d: %v", p.ID, err)
		}
	}
	enabled := false
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	return &provider.Provider{
		ID:           p.ID,
		Code:         p.Code,
		DisplayName:  p.DisplayName,
		Enabled:      enabled,
		Adapter:      p.Adapter,
		Endpoint:     p.Endpoint,
		DefaultModel: p.DefaultModel,
		Config:       cfg,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
