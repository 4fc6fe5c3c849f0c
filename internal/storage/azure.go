package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/sirupsen/logrus"
)

// BlobArchive keeps mention snapshots in an Azure Blob Storage container
type BlobArchive struct {
	client        *azblob.Client
	containerName string
}

// Ensure BlobArchive implements SnapshotStore
var _ SnapshotStore = (*BlobArchive)(nil)

// NewBlobArchive creates an archive client using the default Azure credential chain
func NewBlobArchive(ctx context.Context, accountName, containerName string) (*BlobArchive, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	archive := &BlobArchive{
		client:        client,
		containerName: containerName,
	}

	if err := archive.ensureContainer(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return archive, nil
}

func (a *BlobArchive) ensureContainer(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.containerName, nil)
	if err != nil {
		if !strings.Contains(err.Error(), "ContainerAlreadyExists") {
			return fmt.Errorf("failed to create container: %w", err)
		}
		logrus.Debugf("Container %s already exists", a.containerName)
	} else {
		logrus.Infof("Created container %s", a.containerName)
	}

	return nil
}

// Store uploads a snapshot
func (a *BlobArchive) Store(ctx context.Context, name string, data []byte) error {
	_, err := a.client.UploadBuffer(ctx, a.containerName, name, data, &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024),
		Concurrency: 3,
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", name, err)
	}

	logrus.Infof("Archived snapshot %s (%d bytes)", name, len(data))
	return nil
}

// Retrieve downloads a snapshot
func (a *BlobArchive) Retrieve(ctx context.Context, name string) ([]byte, error) {
	response, err := a.client.DownloadStream(ctx, a.containerName, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download snapshot %s: %w", name, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot content: %w", err)
	}

	return data, nil
}

// List returns snapshot names under a prefix
func (a *BlobArchive) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	pager := a.client.NewListBlobsFlatPager(a.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				names = append(names, *blob.Name)
			}
		}
	}

	return names, nil
}

// Delete removes a snapshot
func (a *BlobArchive) Delete(ctx context.Context, name string) error {
	if _, err := a.client.DeleteBlob(ctx, a.containerName, name, nil); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", name, err)
	}

	logrus.Infof("Deleted snapshot %s", name)
	return nil
}

// SnapshotPrefix is the blob prefix shared by every snapshot of brand
func SnapshotPrefix(brand string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(brand), "-"))
	return fmt.Sprintf("mentions/%s/", slug)
}

// SnapshotName builds the blob name for a brand snapshot taken at stamp.
// Stamps sort chronologically, so names under one prefix do too.
func SnapshotName(brand, stamp string) string {
	return SnapshotPrefix(brand) + stamp + ".json"
}
