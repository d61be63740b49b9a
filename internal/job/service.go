// Package job implements the submit → poll → resolve workflow shared by every
// avatar feature. Submissions forward one request to the gateway and
// normalize the vendor envelope; polling maps vendor statuses into the shared
// vocabulary, optionally looping until a terminal status under a budget.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/gateway"
	"github.com/avatarstudio/avatargw/internal/infra/metrics"
	"github.com/avatarstudio/avatargw/internal/vendor"
)

// Sender is the part of the gateway client the service needs.
type Sender interface {
	Send(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Config tunes the service.
type Config struct {
	Poll       PollPolicy
	TTSTimeout time.Duration
}

// Service runs submissions and polls. It holds no per-job state.
type Service struct {
	gw         Sender
	vendors    *vendor.Registry
	jobs       domain.JobStore
	policy     PollPolicy
	ttsTimeout time.Duration
	validator  *validator.Validate
	log        *slog.Logger
}

// NewService wires a service. jobs may be nil to skip job history.
func NewService(gw Sender, vendors *vendor.Registry, jobs domain.JobStore, cfg Config, log *slog.Logger) *Service {
	if vendors == nil {
		vendors = vendor.DefaultRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.TTSTimeout <= 0 {
		cfg.TTSTimeout = 300 * time.Second
	}
	return &Service{
		gw:         gw,
		vendors:    vendors,
		jobs:       jobs,
		policy:     cfg.Poll.withDefaults(),
		ttsTimeout: cfg.TTSTimeout,
		validator:  newValidator(),
		log:        log.With("component", "job"),
	}
}

// Policy returns the default inline polling policy.
func (s *Service) Policy() PollPolicy { return s.policy }

// ─── Submissions ────────────────────────────────────────────────────────────

// SeparateAudio splits the audio of the given videos into stems.
func (s *Service) SeparateAudio(ctx context.Context, req SeparateAudioRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorToolkit, op: "separate_audio", path: "/toolkit/audio/separate",
		apiKey: req.APIKey, body: map[string]any{"videos": req.Videos},
	})
}

// RunToolkit merges, concatenates, trims or extracts audio from videos.
func (s *Service) RunToolkit(ctx context.Context, req ToolkitRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorToolkit, op: "toolkit_" + req.Operation, path: "/toolkit/video/" + req.Operation,
		apiKey: req.APIKey, body: map[string]any{"videos": req.Videos},
	})
}

// SubmitLipSync queues a LatentSync job.
func (s *Service) SubmitLipSync(ctx context.Context, req LipSyncRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorLatentSync, op: "lipsync", path: "/fal/latentsync",
		apiKey: req.APIKey, body: map[string]any{"video_url": req.VideoURL, "audio_url": req.AudioURL},
	})
}

// SubmitPromptLipSync queues a stable-avatar job.
func (s *Service) SubmitPromptLipSync(ctx context.Context, req PromptLipSyncRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorStableAvatar, op: "lipsync_prompt", path: "/fal/stable-avatar",
		apiKey: req.APIKey,
		body:   map[string]any{"image_url": req.ImageURL, "audio_url": req.AudioURL, "prompt": req.Prompt},
	})
}

// SubmitTalkingHead queues an OmniHuman job.
func (s *Service) SubmitTalkingHead(ctx context.Context, req TalkingHeadRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorOmniHuman, op: "talking_head", path: "/doubao/omnihuman/submit",
		apiKey: req.APIKey, body: map[string]any{"image_url": req.ImageURL, "audio_url": req.AudioURL},
	})
}

// CreateAvatar trains a custom Chanjing avatar.
func (s *Service) CreateAvatar(ctx context.Context, req CreateAvatarRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorChanjingAvatar, op: "create_avatar", path: "/chanjing/avatar/create",
		apiKey: req.APIKey, body: map[string]any{"name": req.Name, "material_video": req.VideoURL},
	})
}

// CreateChanjingVideo renders a Chanjing avatar video.
func (s *Service) CreateChanjingVideo(ctx context.Context, req ChanjingVideoRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	audio := map[string]any{"type": "audio", "wav_url": req.AudioURL}
	if req.AudioURL == "" {
		audio = map[string]any{
			"type": "tts",
			"tts":  map[string]any{"text": []string{req.Text}, "audio_man": req.VoiceID},
		}
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorChanjing, op: "chanjing_video", path: "/chanjing/video/create",
		apiKey: req.APIKey,
		body:   map[string]any{"person": map[string]any{"id": req.AvatarID}, "audio": audio},
	})
}

// SubmitHedra queues a Hedra character generation.
func (s *Service) SubmitHedra(ctx context.Context, req HedraRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	inputs := map[string]any{"text_prompt": req.Prompt}
	if req.Resolution != "" {
		inputs["resolution"] = req.Resolution
	}
	if req.AspectRatio != "" {
		inputs["aspect_ratio"] = req.AspectRatio
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorHedra, op: "hedra", path: "/hedra/generations",
		apiKey: req.APIKey,
		body: map[string]any{
			"type":                   "video",
			"start_keyframe_url":     req.ImageURL,
			"audio_url":              req.AudioURL,
			"generated_video_inputs": inputs,
		},
	})
}

// SubmitTopView queues a TopView avatar video.
func (s *Service) SubmitTopView(ctx context.Context, req TopViewRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	body := map[string]any{"avatarId": req.AvatarID}
	if req.AudioURL != "" {
		body["audioUrl"] = req.AudioURL
	} else {
		body["ttsText"] = req.Text
		body["voiceoverId"] = req.VoiceID
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorTopView, op: "topview", path: "/topview/avatar/submit",
		apiKey: req.APIKey, body: body,
	})
}

// SynthesizeSpeech runs text-to-speech. Bounded by the TTS timeout.
func (s *Service) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (domain.Submission, error) {
	if err := s.validate(req); err != nil {
		return domain.Submission{}, err
	}
	body := map[string]any{"text": req.Text, "voice_id": req.VoiceID}
	if req.Speed > 0 {
		body["speed"] = req.Speed
	}
	return s.submit(ctx, submitCall{
		vendor: domain.VendorToolkit, op: "tts", path: "/tts/synthesize",
		apiKey: req.APIKey, body: body, timeout: s.ttsTimeout,
	})
}

// UploadMedia stores a file with the gateway and returns its public URL.
func (s *Service) UploadMedia(ctx context.Context, req UploadRequest) (string, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := s.gw.Send(ctx, gateway.Request{
		Op:     "upload",
		Method: http.MethodPost,
		Path:   "/files/upload",
		APIKey: req.APIKey,
		Multipart: &gateway.Multipart{
			Files: []gateway.File{{Field: "file", Name: req.Filename, ContentType: contentType, Reader: req.Reader}},
		},
		NoTimeout: true,
	})
	if err != nil {
		return "", err
	}
	for _, path := range []string{"url", "data.url", "result.url"} {
		if u := gjson.GetBytes(resp.Body, path); u.Type == gjson.String && u.String() != "" {
			s.log.Info("media uploaded", "filename", req.Filename)
			return u.String(), nil
		}
	}
	return "", fmt.Errorf("%w: upload reply has no url", domain.ErrMalformedReply)
}

// submitCall is one normalized submission.
type submitCall struct {
	vendor  domain.Vendor
	op      string
	path    string
	apiKey  string
	body    any
	timeout time.Duration
}

func (s *Service) submit(ctx context.Context, c submitCall) (domain.Submission, error) {
	n, err := s.vendors.Lookup(c.vendor)
	if err != nil {
		return domain.Submission{}, err
	}

	req := gateway.Request{
		Op:     "submit_" + c.op,
		Method: http.MethodPost,
		Path:   c.path,
		APIKey: c.apiKey,
		JSON:   c.body,
	}
	if c.timeout > 0 {
		req.Timeout = c.timeout
	} else {
		req.NoTimeout = true
	}

	resp, err := s.gw.Send(ctx, req)
	if err != nil {
		metrics.Submissions.WithLabelValues(string(c.vendor), "error").Inc()
		return domain.Submission{}, err
	}

	sub, err := n.ToSubmission(resp.Body)
	if err != nil {
		metrics.Submissions.WithLabelValues(string(c.vendor), "error").Inc()
		s.log.Warn("submission rejected", "vendor", c.vendor, "op", c.op, "error", err)
		return domain.Submission{}, err
	}

	if sub.Resolved() {
		metrics.Submissions.WithLabelValues(string(c.vendor), "resolved").Inc()
		s.log.Info("submission resolved", "vendor", c.vendor, "op", c.op)
		return sub, nil
	}

	metrics.Submissions.WithLabelValues(string(c.vendor), "task").Inc()
	s.log.Info("task submitted", "vendor", c.vendor, "op", c.op, "task_id", sub.Handle.TaskID)
	s.record(*sub.Handle, c.op)
	return sub, nil
}

// record writes job history. History is best effort and never fails a job.
func (s *Service) record(h domain.TaskHandle, op string) {
	if s.jobs == nil {
		return
	}
	err := s.jobs.RecordJob(domain.JobRecord{
		ID:        uuid.NewString(),
		Vendor:    h.Vendor,
		TaskID:    h.TaskID,
		Operation: op,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.log.Warn("record job", "vendor", h.Vendor, "task_id", h.TaskID, "error", err)
	}
}

func (s *Service) finish(h domain.TaskHandle, res domain.PollResult) {
	if s.jobs == nil {
		return
	}
	var msg string
	if res.Error != nil {
		msg = res.Error.Message
	}
	err := s.jobs.FinishJob(h.Vendor, h.TaskID, res.Status, msg)
	if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		s.log.Warn("finish job", "vendor", h.Vendor, "task_id", h.TaskID, "error", err)
	}
}
