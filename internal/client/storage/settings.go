package storage

import "context"

// SettingLastSyncTime is the key of the last-sync watermark.
const SettingLastSyncTime = "LAST_SYNC_TIME"

// NeverSynced is the watermark value used before the first pull.
const NeverSynced = "-1"

// SettingsStorage defines interface for storing client settings
type SettingsStorage interface {
	// SaveSetting stores a setting value
	SaveSetting(ctx context.Context, key, value string) error

	// GetSetting retrieves a setting value
	// Returns an empty string and false if the setting is absent
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// LastSyncTime reads the watermark, falling back to NeverSynced.
func LastSyncTime(ctx context.Context, s SettingsStorage) (string, error) {
	value, ok, err := s.GetSetting(ctx, SettingLastSyncTime)
	if err != nil {
		return NeverSynced, err
	}
	if !ok || value == "" {
		return NeverSynced, nil
	}
	return value, nil
}
