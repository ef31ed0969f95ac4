package orchestrator

import (
	"github.com/terminology-platform/semindex/internal/platform/logger"
	"github.com/terminology-platform/semindex/internal/utils"
)

// Config is the configuration surface named in §6: whether semantic
// indexing runs at all, and the write batch size. The well-known concept id
// constants and the STATED/INFERRED characteristic-type sets are fixed in
// internal/domain rather than configurable, matching the source algorithm.
type Config struct {
	SemanticIndexingEnabled bool
	BatchSaveSize           int
}

// LoadConfig reads configuration from the environment, matching the
// teacher's internal/app.LoadConfig style (no config-file framework).
func LoadConfig(log *logger.Logger) Config {
	return Config{
		SemanticIndexingEnabled: utils.GetEnv("SEMANTIC_INDEXING_ENABLED", "true", log) != "false",
		BatchSaveSize:           utils.GetEnvAsInt("SEMANTIC_INDEX_BATCH_SAVE_SIZE", 1000, log),
	}
}
