// pkg/core/keys.go
package core

import (
	"strconv"
	"strings"
)

// AssetKeyPrefix prefixes every smart object key in the room property table.
const AssetKeyPrefix = "asset_"

// StartGameKey is the room property that starts a session.
const StartGameKey = "start_game"

// ScoreProperty is the per-player custom property reset at session start.
const ScoreProperty = "score"

// Reserved identifiers.
const (
	PlayerID int32 = 10000
	WeaponID int32 = 100001
)

// BuiltinBundle holds templates for objects that are not loaded from an
// asset bundle.
const BuiltinBundle = "builtin"

// PlayerTemplate builds the local player's smart object.
var PlayerTemplate = Template{Bundle: BuiltinBundle, Asset: "player"}

// Key returns the property table key for a smart object id.
func Key(id int32) string {
	return AssetKeyPrefix + strconv.FormatInt(int64(id), 10)
}

// PlayerKey and WeaponKey are the local-only keys of the player's own object
// and its equipped weapon.
var (
	PlayerKey = Key(PlayerID)
	WeaponKey = Key(WeaponID)
)

// IsAssetKey reports whether key names a smart object.
func IsAssetKey(key string) bool {
	return strings.HasPrefix(key, AssetKeyPrefix)
}

// ParseKey extracts the id from a smart object key.
func ParseKey(key string) (int32, bool) {
	if !IsAssetKey(key) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, AssetKeyPrefix), 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(id), true
}

// IsReserved reports whether id is one of the local-only identifiers.
func IsReserved(id int32) bool {
	return id == PlayerID || id == WeaponID
}
