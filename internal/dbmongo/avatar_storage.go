package dbmongo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AvatarStorage keeps user avatar images in GridFS, outside the relational
// store; users reference them by file id.
type AvatarStorage struct {
	gridFS *gridfs.Bucket
}

func NewAvatarStorage(mongoClient *MongoClient) *AvatarStorage {
	return &AvatarStorage{
		gridFS: mongoClient.GridFS,
	}
}

type AvatarFile struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (as *AvatarStorage) UploadAvatar(ctx context.Context, filename, mimeType, userID string, content io.Reader) (*AvatarFile, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("avatar must be an image, got %s", mimeType)
	}

	metadata := bson.M{
		"mime_type":   mimeType,
		"uploaded_by": userID,
		"uploaded_at": time.Now(),
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := as.gridFS.OpenUploadStream(filename, opts)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer stream.Close()

	size, err := io.Copy(stream, content)
	if err != nil {
		return nil, fmt.Errorf("file copy failed: %w", err)
	}

	return &AvatarFile{
		ID:         stream.FileID.(primitive.ObjectID).Hex(),
		Filename:   filename,
		Size:       size,
		MimeType:   mimeType,
		UploadedBy: userID,
		UploadedAt: time.Now(),
	}, nil
}

func (as *AvatarStorage) DownloadAvatar(ctx context.Context, fileID string) (io.Reader, *AvatarFile, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid file ID: %w", err)
	}

	stream, err := as.gridFS.OpenDownloadStream(objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}

	fileInfo := stream.GetFile()
	var metadata bson.M
	if fileInfo.Metadata != nil {
		bson.Unmarshal(fileInfo.Metadata, &metadata)
	}

	avatar := &AvatarFile{
		ID:         fileID,
		Filename:   fileInfo.Name,
		Size:       fileInfo.Length,
		MimeType:   getStringFromMap(metadata, "mime_type"),
		UploadedBy: getStringFromMap(metadata, "uploaded_by"),
		UploadedAt: fileInfo.UploadDate,
	}

	return stream, avatar, nil
}

func (as *AvatarStorage) DeleteAvatar(ctx context.Context, fileID string) error {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return fmt.Errorf("invalid file ID: %w", err)
	}
	return as.gridFS.Delete(objectID)
}

func getStringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
