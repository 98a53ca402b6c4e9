package domain

import "time"

type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncSyncing   SyncStatus = "syncing"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// Account is a tracked advertising account.
type Account struct {
	ID           string     `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	Name         string     `gorm:"column:name;type:varchar(256)" json:"name"`
	Currency     string     `gorm:"column:currency;type:varchar(8)" json:"currency,omitempty"`
	Timezone     string     `gorm:"column:timezone;type:varchar(64)" json:"timezone,omitempty"`
	Status       string     `gorm:"column:status;type:varchar(32)" json:"status,omitempty"`
	Active       bool       `gorm:"column:active" json:"active"`
	SyncStatus   SyncStatus `gorm:"column:sync_status;type:varchar(16)" json:"sync_status"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	LastError    string     `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Account) TableName() string { return "ad_accounts" }

// AccountMetadata is the display information returned by the upstream API.
type AccountMetadata struct {
	ID       string `json:"account_id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone_name"`
	Status   string `json:"account_status"`
}

type Campaign struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	AccountID string    `gorm:"column:account_id;type:varchar(64);index" json:"account_id"`
	Name      string    `gorm:"column:name;type:varchar(256)" json:"name"`
	Status    string    `gorm:"column:status;type:varchar(32)" json:"status"`
	Objective string    `gorm:"column:objective;type:varchar(64)" json:"objective"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Campaign) TableName() string { return "ad_campaigns" }

type AdSet struct {
	ID         string    `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	AccountID  string    `gorm:"column:account_id;type:varchar(64);index" json:"account_id"`
	CampaignID string    `gorm:"column:campaign_id;type:varchar(128)" json:"campaign_id"`
	Name       string    `gorm:"column:name;type:varchar(256)" json:"name"`
	Status     string    `gorm:"column:status;type:varchar(32)" json:"status"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AdSet) TableName() string { return "ad_sets" }

type Ad struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	AccountID    string    `gorm:"column:account_id;type:varchar(64);index" json:"account_id"`
	CampaignID   string    `gorm:"column:campaign_id;type:varchar(128)" json:"campaign_id"`
	AdSetID      string    `gorm:"column:adset_id;type:varchar(128)" json:"adset_id"`
	Name         string    `gorm:"column:name;type:varchar(256)" json:"name"`
	Status       string    `gorm:"column:status;type:varchar(32)" json:"status"`
	CreativeType string    `gorm:"column:creative_type;type:varchar(32)" json:"creative_type"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Ad) TableName() string { return "ads" }

// CreativeVideo marks ads whose creative is a video.
const CreativeVideo = "video"

// Structure is the campaign / ad set / ad identity tree of one account.
type Structure struct {
	Campaigns []Campaign
	AdSets    []AdSet
	Ads       []Ad
}

// EntityCount is the number of entities in the tree.
func (s *Structure) EntityCount() int {
	if s == nil {
		return 0
	}
	return len(s.Campaigns) + len(s.AdSets) + len(s.Ads)
}

// VideoAdIDs returns the set of ads carrying video creative.
func (s *Structure) VideoAdIDs() map[string]bool {
	out := make(map[string]bool)
	if s == nil {
		return out
	}
	for _, ad := range s.Ads {
		if ad.CreativeType == CreativeVideo {
			out[ad.ID] = true
		}
	}
	return out
}

// SyntheticID builds the placeholder identifier used for the campaign, ad set
// or ad slot of a row reported above ad level.
func SyntheticID(level InsightLevel, parentID, kind string) string {
	return string(level) + ":" + parentID + ":" + kind
}
