package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBlobFetcher reads artifacts from one blob container. Locations are blob names.
type AzureBlobFetcher struct {
	client    *azblob.Client
	container string
}

// NewAzureBlobFetcher authenticates with a shared key when accountKey is set,
// otherwise serviceURL is used as-is (public container or SAS token).
func NewAzureBlobFetcher(accountName, accountKey, serviceURL, container string) (*AzureBlobFetcher, error) {
	if container == "" {
		return nil, fmt.Errorf("azure container name is required")
	}
	if serviceURL == "" {
		if accountName == "" {
			return nil, fmt.Errorf("azure account name or service URL is required")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	var (
		client *azblob.Client
		err    error
	)
	if accountKey != "" {
		credential, credErr := azblob.NewSharedKeyCredential(accountName, accountKey)
		if credErr != nil {
			return nil, fmt.Errorf("azure shared key: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	} else {
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &AzureBlobFetcher{client: client, container: container}, nil
}

func (s *AzureBlobFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	blobName := strings.TrimLeft(location, "/")
	if blobName == "" {
		return nil, fmt.Errorf("empty blob name")
	}

	resp, err := s.client.DownloadStream(ctx, s.container, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s failed: %w", s.container, blobName, err)
	}
	body := resp.Body
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", s.container, blobName, err)
	}
	return data, nil
}
