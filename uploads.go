package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/handlers"
	"github.com/keyflowhq/keyflow_backend/utils"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

const keyPhotoMaxWidth = 1200

// keyPhotoUploadHandler accepts a vehicle photo for a key, either as a
// multipart file or a base64 body, sniffs the real content type, downsizes it
// and stores it via the configured provider.
func keyPhotoUploadHandler(api *handlers.API) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()

		keyId := c.Param("id")
		if _, err := api.Engine.GetKeyView(ctx, keyId); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}

		data, originalName, err := readUploadPayload(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds 5MB limit"})
			return
		}

		// Trust the bytes, not the declared type.
		mimeType := http.DetectContentType(data)
		if mimeType != "image/jpeg" && mimeType != "image/png" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only jpeg and png images are accepted"})
			return
		}

		resized, err := resizeKeyPhoto(data)
		if err != nil {
			config.LogError(logger, "uploads", "keyPhotoUploadHandler", "resize", keyId, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode image"})
			return
		}

		objectName := fmt.Sprintf("keys/%s/%s", keyId, utils.GenerateUniqueFilename(originalName))
		var photoUrl string
		switch utils.GetStorageProvider() {
		case utils.StorageProviderGCS:
			if err := utils.UploadBytesToGCS(ctx, objectName, resized, "image/jpeg"); err != nil {
				config.LogError(logger, "uploads", "keyPhotoUploadHandler", "gcs upload", objectName, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
				return
			}
			photoUrl = utils.GCSPublicURL(objectName)
		default:
			if err := utils.SaveBytesToLocal(objectName, resized); err != nil {
				config.LogError(logger, "uploads", "keyPhotoUploadHandler", "local save", objectName, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
				return
			}
			photoUrl = utils.LocalPublicURL(objectName)
		}

		key, err := api.Engine.SetKeyPhoto(ctx, keyId, photoUrl)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save photo"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"photo_url": key.PhotoUrl})
	}
}

func readUploadPayload(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadSizeBytes+1))
		if err != nil {
			return nil, "", err
		}
		return data, file.Filename, nil
	}

	var body struct {
		ImageData string `json:"image_data"`
		FileName  string `json:"file_name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ImageData == "" {
		return nil, "", fmt.Errorf("expected a multipart file or base64 image_data")
	}
	raw := body.ImageData
	if idx := strings.Index(raw, ","); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image data")
	}
	name := body.FileName
	if name == "" {
		name = "photo.jpg"
	}
	return data, name, nil
}

func resizeKeyPhoto(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > keyPhotoMaxWidth {
		img = imaging.Resize(img, keyPhotoMaxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
