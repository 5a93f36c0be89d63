package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/quillworks/scribe/internal/config"
	"github.com/quillworks/scribe/internal/services/content"
	"github.com/quillworks/scribe/internal/services/notices"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Metadata keys on the owning content item
const (
	MetaFileIDs  = "knowledge_file_ids"
	MetaFileName = "knowledge_file_name"
	MetaTypes    = "knowledge_types"
)

// minWords drops near-empty items from the generated corpus
const minWords = 5

var (
	// ErrFileListing signals the remote file listing answered with an error
	// envelope, so dedup state could not be determined
	ErrFileListing = errors.New("could not list uploaded knowledge files")
	// ErrUpload signals the upload call failed or returned no file id
	ErrUpload = errors.New("knowledge file upload failed")
)

// Document is one entry of the generated knowledge corpus
type Document struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// RemoteAPI is the slice of the assistant API the uploader needs
type RemoteAPI interface {
	ListFiles(ctx context.Context) (openai.FilesList, error)
	UploadFile(ctx context.Context, name string, contents []byte) (openai.File, error)
	DeleteFile(ctx context.Context, fileID string) error
}

type Service struct {
	api     RemoteAPI
	content *content.Service
	notices *notices.Service
}

func NewService(api RemoteAPI, contentService *content.Service, noticeService *notices.Service) *Service {
	log.Info().Msg("Initialising knowledge service")
	return &Service{
		api:     api,
		content: contentService,
		notices: noticeService,
	}
}

// FileName derives the deterministic knowledge file name for an item
func FileName(siteID, itemID string) string {
	return fmt.Sprintf("knowledge-%s-%s.json", siteID, itemID)
}

// FilePath returns where the item's knowledge file lives on disk
func FilePath(name string) string {
	return filepath.Join(config.GetKnowledgeDir(), name)
}

// FileIDs returns the remote file ids currently tracked for the item
func (s *Service) FileIDs(ctx context.Context, itemID string) []string {
	ids, err := s.content.GetMetaList(ctx, itemID, MetaFileIDs)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to read knowledge file ids")
		return nil
	}
	return ids
}

// Refresh regenerates the item's knowledge corpus from the selected content
// types, writes it to disk and records the file name for the next upload.
func (s *Service) Refresh(ctx context.Context, itemID string, types []string) error {
	data, err := s.Generate(ctx, types)
	if err != nil {
		return err
	}

	name := FileName(config.GetSiteID(), itemID)
	if err := os.WriteFile(FilePath(name), data, 0o644); err != nil {
		s.notices.SetError(ctx, itemID, "Knowledge file could not be saved.")
		return fmt.Errorf("write knowledge file: %w", err)
	}
	s.notices.SetSuccess(ctx, itemID, "Knowledge file saved successfully.")

	if err := s.content.SetMeta(ctx, itemID, MetaFileName, name); err != nil {
		return err
	}
	return s.content.SetMetaList(ctx, itemID, MetaTypes, types)
}

// Generate builds the JSON corpus from every item of the given types whose
// tag-stripped body carries more than minWords words.
func (s *Service) Generate(ctx context.Context, types []string) ([]byte, error) {
	items, err := s.content.List(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}

	docs := make([]Document, 0, len(items))
	for _, item := range items {
		body := stripTags(item.Body)
		if len(strings.Fields(body)) <= minWords {
			continue
		}
		docs = append(docs, Document{
			Title:   item.Title,
			URL:     item.URL,
			Content: body,
			Type:    item.Type,
		})
	}

	return json.MarshalIndent(docs, "", "    ")
}

// EnsureUploaded guarantees a remote file id exists for the item's selected
// knowledge file, reusing a remote file with the same name rather than
// uploading a duplicate.
func (s *Service) EnsureUploaded(ctx context.Context, itemID string) error {
	name, err := s.content.GetMeta(ctx, itemID, MetaFileName)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}

	list, err := s.api.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileListing, err)
	}

	for _, f := range list.Files {
		if f.FileName == name {
			log.Debug().Str("file_id", f.ID).Str("name", name).Msg("Reusing already uploaded knowledge file")
			return s.content.SetMetaList(ctx, itemID, MetaFileIDs, []string{f.ID})
		}
	}

	contents, err := os.ReadFile(FilePath(name))
	if err != nil {
		s.notices.SetError(ctx, itemID, "Failed to upload knowledge file.")
		return fmt.Errorf("%w: read %s: %v", ErrUpload, name, err)
	}

	uploaded, err := s.api.UploadFile(ctx, name, contents)
	if err != nil || uploaded.ID == "" {
		s.notices.SetError(ctx, itemID, "Failed to upload knowledge file.")
		s.content.DeleteMeta(ctx, itemID, MetaFileIDs)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpload, err)
		}
		return ErrUpload
	}

	return s.content.SetMetaList(ctx, itemID, MetaFileIDs, []string{uploaded.ID})
}

// RemoveUploaded deletes the item's remote knowledge files, best effort.
// Ids whose delete call failed stay tracked so the next transition retries.
func (s *Service) RemoveUploaded(ctx context.Context, itemID string) {
	ids := s.FileIDs(ctx, itemID)
	if len(ids) == 0 {
		return
	}

	var kept []string
	for _, id := range ids {
		if err := s.api.DeleteFile(ctx, id); err != nil {
			log.Warn().Err(err).Str("file_id", id).Msg("Failed to delete remote knowledge file, keeping id for retry")
			kept = append(kept, id)
		}
	}

	if len(kept) == 0 {
		s.content.DeleteMeta(ctx, itemID, MetaFileIDs)
		return
	}
	if err := s.content.SetMetaList(ctx, itemID, MetaFileIDs, kept); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to update tracked knowledge file ids")
	}
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags is a lossy plain-text projection of an HTML body, matching what
// the knowledge corpus feeds the assistant
func stripTags(s string) string {
	text := tagPattern.ReplaceAllString(s, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
