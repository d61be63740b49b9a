package job

import (
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/avatarstudio/avatargw/internal/domain"
)

// ─── Submission Inputs ──────────────────────────────────────────────────────
// JSON names match the HTTP routes; validation runs before any network call.

// SeparateAudioRequest splits vocals from accompaniment.
type SeparateAudioRequest struct {
	APIKey string   `json:"apiKey" validate:"required"`
	Videos []string `json:"videos" validate:"required,min=1,dive,required"`
}

// ToolkitRequest runs a video toolkit operation over one or more videos.
type ToolkitRequest struct {
	APIKey    string   `json:"apiKey" validate:"required"`
	Videos    []string `json:"videos" validate:"required,min=1,dive,required"`
	Operation string   `json:"operation" validate:"required,oneof=merge concat trim extract_audio"`
}

// LipSyncRequest re-times a video's mouth to an audio track (LatentSync).
type LipSyncRequest struct {
	APIKey   string `json:"apiKey" validate:"required"`
	VideoURL string `json:"videoUrl" validate:"required"`
	AudioURL string `json:"audioUrl" validate:"required"`
}

// PromptLipSyncRequest animates a still image from audio and a prompt (stable-avatar).
type PromptLipSyncRequest struct {
	APIKey   string `json:"apiKey" validate:"required"`
	ImageURL string `json:"imageUrl" validate:"required"`
	AudioURL string `json:"audioUrl" validate:"required"`
	Prompt   string `json:"prompt" validate:"required"`
}

// TalkingHeadRequest drives OmniHuman. Field names follow the vendor.
type TalkingHeadRequest struct {
	APIKey   string `json:"apiKey" validate:"required"`
	ImageURL string `json:"image_url" validate:"required"`
	AudioURL string `json:"audio_url" validate:"required"`
}

// CreateAvatarRequest trains a custom Chanjing avatar from a video.
type CreateAvatarRequest struct {
	APIKey   string `json:"apiKey" validate:"required"`
	Name     string `json:"name" validate:"required"`
	VideoURL string `json:"videoUrl" validate:"required"`
}

// ChanjingVideoRequest renders an avatar video from audio or TTS text.
type ChanjingVideoRequest struct {
	APIKey   string `json:"apiKey" validate:"required"`
	AvatarID string `json:"avatarId" validate:"required"`
	AudioURL string `json:"audioUrl"`
	Text     string `json:"text" validate:"required_without=AudioURL"`
	VoiceID  string `json:"voiceId" validate:"required_without=AudioURL"`
}

// HedraRequest generates a character video.
type HedraRequest struct {
	APIKey      string `json:"apiKey" validate:"required"`
	ImageURL    string `json:"imageUrl" validate:"required"`
	AudioURL    string `json:"audioUrl" validate:"required"`
	Prompt      string `json:"prompt"`
	Resolution  string `json:"resolution" validate:"omitempty,oneof=540p 720p"`
	AspectRatio string `json:"aspectRatio" validate:"omitempty,oneof=1:1 16:9 9:16"`
}

// TopViewRequest renders a TopView avatar video from audio or TTS text.
type TopViewRequest struct {
	APIKey   string `json:"apiKey" validate:"required"`
	AvatarID string `json:"avatarId" validate:"required"`
	AudioURL string `json:"audioUrl"`
	Text     string `json:"text" validate:"required_without=AudioURL"`
	VoiceID  string `json:"voiceId" validate:"required_without=AudioURL"`
}

// SpeechRequest synthesizes speech.
type SpeechRequest struct {
	APIKey  string  `json:"apiKey" validate:"required"`
	Text    string  `json:"text" validate:"required"`
	VoiceID string  `json:"voiceId" validate:"required"`
	Speed   float64 `json:"speed" validate:"omitempty,gte=0.5,lte=2"`
}

// UploadRequest uploads a media file to the gateway's storage.
type UploadRequest struct {
	APIKey      string    `json:"apiKey" validate:"required"`
	Filename    string    `json:"filename" validate:"required"`
	ContentType string    `json:"contentType"`
	Reader      io.Reader `json:"-" validate:"required"`
}

// PollRequest asks for one task's status. Vendor defaults to chanjing, the
// one integration whose route collapses submit and poll.
type PollRequest struct {
	APIKey string `json:"apiKey" validate:"required"`
	ID     string `json:"id" validate:"required"`
	Vendor string `json:"vendor"`
}

// Handle resolves the request into a task handle.
func (r PollRequest) Handle() (domain.TaskHandle, error) {
	v := domain.VendorChanjing
	if r.Vendor != "" {
		parsed, err := domain.ParseVendor(r.Vendor)
		if err != nil {
			return domain.TaskHandle{}, err
		}
		v = parsed
	}
	return domain.TaskHandle{TaskID: r.ID, Vendor: v}, nil
}

// ─── Validation ─────────────────────────────────────────────────────────────

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name[:1]) + f.Name[1:]
		}
		return name
	})
	return v
}

// validate converts validator failures into a *domain.ValidationError.
func (s *Service) validate(req any) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domain.ValidationError{Msg: err.Error()}
	}

	var missing, invalid []string
	for _, fe := range fieldErrs {
		name := fieldName(fe)
		switch fe.Tag() {
		case "required", "required_without", "min":
			missing = appendUnique(missing, name)
		default:
			invalid = appendUnique(invalid, name+" must be "+describeTag(fe))
		}
	}
	if len(invalid) > 0 {
		return &domain.ValidationError{Fields: append(missing, invalid...), Msg: "invalid request: " + strings.Join(append(missing, invalid...), "; ")}
	}
	return &domain.ValidationError{Fields: missing}
}

// fieldName keeps the top-level name for dive errors like videos[0].
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	return name
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "one of [" + fe.Param() + "]"
	case "gte":
		return ">= " + fe.Param()
	case "lte":
		return "<= " + fe.Param()
	default:
		return fe.Tag()
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
