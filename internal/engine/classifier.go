package engine

import (
	"strings"

	"github.com/miradorstack/instana-sre/internal/models"
)

// Classify maps a free-text plugin id onto the closed PluginType set.
// "infrastructure" wins over "endpoint", which wins over "service"; matching ignores case.
func Classify(pluginID string) models.PluginType {
	id := strings.ToLower(pluginID)
	switch {
	case id == "":
		return models.PluginUnknown
	case strings.Contains(id, "infrastructure"):
		return models.PluginInfrastructure
	case strings.Contains(id, "endpoint"):
		return models.PluginEndpoint
	case strings.Contains(id, "service"):
		return models.PluginService
	default:
		return models.PluginUnknown
	}
}

// TagFilterName picks the infrastructure tag used to look up a snapshot for pluginID.
func TagFilterName(pluginID string) string {
	id := strings.ToLower(pluginID)
	switch {
	case strings.Contains(id, "host"):
		return "id.host"
	case strings.Contains(id, "process"):
		return "id.process"
	case strings.Contains(id, "opentelemetry"):
		return "id.otel"
	default:
		return "id.host"
	}
}

// AddressingID returns the id used to resolve entry for pluginType, or "" when none applies.
// Endpoints and services are addressed by steady id; infrastructure by the first
// relevantSnapshotID in the explainability list, falling back to the entry's snapshotId.
func AddressingID(entry models.RootCauseEntry, pluginType models.PluginType) string {
	switch pluginType {
	case models.PluginEndpoint, models.PluginService:
		return entry.EntityID.SteadyID
	case models.PluginInfrastructure:
		for _, item := range entry.Explainability {
			if item.RelevantSnapshotID != "" {
				return item.RelevantSnapshotID
			}
		}
		return entry.SnapshotID
	case models.PluginUnknown:
		return ""
	default:
		return ""
	}
}
