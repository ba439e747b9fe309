package enrollment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Image is a reference to an uploaded file held by the image store.
type Image struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Thumbnail returns the 270x270 variant of a Cloudinary delivery URL.
// Other URLs are returned unchanged.
func (i Image) Thumbnail() string {
	return strings.Replace(i.URL, "/upload/", "/upload/w_270,h_270/", 1)
}

// Account is the registered student record
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FullName       string     `bun:"fullname,notnull" json:"fullname"`
	Username       string     `bun:"username,notnull,unique" json:"username"`
	Semester       string     `bun:"semester" json:"semester"`
	PersonalEmail  string     `bun:"personalemail,notnull,unique" json:"personalemail"`
	GSuite         string     `bun:"gsuite,notnull,unique" json:"gsuite"`
	MobileNumber   string     `bun:"mobilenumber,notnull,unique" json:"mobilenumber"`
	Images         []Image    `bun:"image,type:jsonb" json:"image"`
	Verified       bool       `bun:"verified,notnull" json:"verified"`
	Active         bool       `bun:"active,notnull" json:"active"`
	Remark         Remark     `bun:"remark,notnull,type:text" json:"remark"`
	EmotionCount   int        `bun:"emotion,notnull" json:"emotion"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// State returns the review state of the account, ignoring the active flag.
func (a *Account) State() LifecycleState {
	if a == nil {
		return ""
	}
	return lifecycleStateOf(a.Verified, a.Remark)
}

// AccessStatus classifies the account for the access gate.
func (a *Account) AccessStatus() AccessStatus {
	return ComputeAccessStatus(a.Verified, a.Active, a.Remark)
}

// Thumbnails returns the thumbnail URL of every attached image.
func (a *Account) Thumbnails() []string {
	out := make([]string, 0, len(a.Images))
	for _, img := range a.Images {
		out = append(out, img.Thumbnail())
	}
	return out
}

// EmotionSample is one aggregate submission from the face expression detector.
// Counters are durations as reported by the client.
type EmotionSample struct {
	bun.BaseModel `bun:"table:emotions,alias:emo"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Happy         int64      `bun:"happy,notnull" json:"happy"`
	Neutral       int64      `bun:"neutral,notnull" json:"neutral"`
	Sad           int64      `bun:"sad,notnull" json:"sad"`
	Angry         int64      `bun:"angry,notnull" json:"angry"`
	Fearful       int64      `bun:"fearful,notnull" json:"fearful"`
	Disgusted     int64      `bun:"disgusted,notnull" json:"disgusted"`
	Surprised     int64      `bun:"surprised,notnull" json:"surprised"`
	Total         int64      `bun:"total,notnull" json:"total"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// Counters returns the per expression values in chart order.
func (s *EmotionSample) Counters() []int64 {
	return []int64{s.Happy, s.Neutral, s.Sad, s.Angry, s.Fearful, s.Disgusted, s.Surprised}
}

// OwnedBy reports whether the sample belongs to the given account.
func (s *EmotionSample) OwnedBy(accountID uuid.UUID) bool {
	return s != nil && accountID != uuid.Nil && s.UserID == accountID
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Images == nil {
		record.Images = []Image{}
	}
}
