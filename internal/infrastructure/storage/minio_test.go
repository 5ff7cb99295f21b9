package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
)

// mockMinioClient implements minioClient interface for testing.
type mockMinioClient struct {
	bucketExistsFunc       func(ctx context.Context, bucketName string) (bool, error)
	presignedGetObjectFunc func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	putObjectFunc          func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	removeObjectFunc       func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	statObjectFunc         func(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

func (m *mockMinioClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if m.bucketExistsFunc != nil {
		return m.bucketExistsFunc(ctx, bucketName)
	}
	return true, nil
}

func (m *mockMinioClient) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	if m.presignedGetObjectFunc != nil {
		return m.presignedGetObjectFunc(ctx, bucketName, objectName, expiry, reqParams)
	}
	return nil, nil
}

func (m *mockMinioClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, bucketName, objectName, reader, objectSize, opts)
	}
	return minio.UploadInfo{}, nil
}

func (m *mockMinioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	if m.removeObjectFunc != nil {
		return m.removeObjectFunc(ctx, bucketName, objectName, opts)
	}
	return nil
}

func (m *mockMinioClient) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if m.statObjectFunc != nil {
		return m.statObjectFunc(ctx, bucketName, objectName, opts)
	}
	return minio.ObjectInfo{}, nil
}

func TestNewClientWithMinioClient(t *testing.T) {
	tests := []struct {
		name       string
		bucket     string
		mockClient *mockMinioClient
		wantErr    error
	}{
		{
			name:   "successful initialization",
			bucket: "test-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return true, nil
				},
			},
			wantErr: nil,
		},
		{
			name:   "bucket does not exist",
			bucket: "non-existent-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, nil
				},
			},
			wantErr: repository.ErrBucketNotFound,
		},
		{
			name:   "bucket check error",
			bucket: "test-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, errors.New("connection refused")
				},
			},
			wantErr: errors.New("failed to check bucket existence"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newClientWithMinioClient(context.Background(), tt.mockClient, tt.mockClient, tt.bucket)

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("newClientWithMinioClient() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("newClientWithMinioClient() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("newClientWithMinioClient() unexpected error = %v", err)
				return
			}

			if client.bucket != tt.bucket {
				t.Errorf("client.bucket = %v, want %v", client.bucket, tt.bucket)
			}
			if client.urlExpiry != DefaultURLExpiry {
				t.Errorf("client.urlExpiry = %v, want %v", client.urlExpiry, DefaultURLExpiry)
			}
		})
	}
}

func TestClient_Put(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		content     string
		contentType string
		mockClient  *mockMinioClient
		wantErr     bool
	}{
		{
			name:        "successful upload",
			key:         "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/3f2a.mp4",
			content:     "video data",
			contentType: "video/mp4",
			mockClient: &mockMinioClient{
				putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
					data, _ := io.ReadAll(reader)
					if string(data) != "video data" {
						return minio.UploadInfo{}, errors.New("unexpected body")
					}
					if objectSize != int64(len(data)) {
						return minio.UploadInfo{}, errors.New("unexpected size")
					}
					if opts.ContentType != "video/mp4" {
						return minio.UploadInfo{}, errors.New("unexpected content type")
					}
					return minio.UploadInfo{Key: objectName, Size: objectSize}, nil
				},
			},
			wantErr: false,
		},
		{
			name:        "upload error",
			key:         "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/3f2a.mp4",
			content:     "video data",
			contentType: "video/mp4",
			mockClient: &mockMinioClient{
				putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
					return minio.UploadInfo{}, errors.New("upload failed")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				client: tt.mockClient,
				bucket: "videos",
			}

			err := client.Put(context.Background(), tt.key, bytes.NewReader([]byte(tt.content)), int64(len(tt.content)), tt.contentType)

			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Delete(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		mockClient *mockMinioClient
		wantErr    bool
	}{
		{
			name: "successful delete",
			key:  "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/3f2a.mp4",
			mockClient: &mockMinioClient{
				removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
					return nil
				},
			},
			wantErr: false,
		},
		{
			name: "missing object is not an error",
			key:  "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/gone.mp4",
			mockClient: &mockMinioClient{
				removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
					return minio.ErrorResponse{Code: "NoSuchKey"}
				},
			},
			wantErr: false,
		},
		{
			name: "delete error",
			key:  "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/3f2a.mp4",
			mockClient: &mockMinioClient{
				removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
					return errors.New("delete failed")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				client: tt.mockClient,
				bucket: "videos",
			}

			err := client.Delete(context.Background(), tt.key)

			if (err != nil) != tt.wantErr {
				t.Errorf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Exists(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		mockClient *mockMinioClient
		want       bool
		wantErr    bool
	}{
		{
			name: "object exists",
			key:  "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/3f2a.mp4",
			mockClient: &mockMinioClient{
				statObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
					return minio.ObjectInfo{Key: objectName, Size: 1024}, nil
				},
			},
			want:    true,
			wantErr: false,
		},
		{
			name: "object does not exist",
			key:  "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/3f2a.mp4",
			mockClient: &mockMinioClient{
				statObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
					return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
				},
			},
			want:    false,
			wantErr: false,
		},
		{
			name: "stat error",
			key:  "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/3f2a.mp4",
			mockClient: &mockMinioClient{
				statObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
					return minio.ObjectInfo{}, errors.New("connection error")
				},
			},
			want:    false,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				client: tt.mockClient,
				bucket: "videos",
			}

			got, err := client.Exists(context.Background(), tt.key)

			if (err != nil) != tt.wantErr {
				t.Errorf("Exists() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if got != tt.want {
				t.Errorf("Exists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_FileURL(t *testing.T) {
	const key = "0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/my file.mp4"

	tests := []struct {
		name          string
		publicBaseURL string
		mockClient    *mockMinioClient
		want          string
		wantErr       bool
	}{
		{
			name:          "public base url",
			publicBaseURL: "https://cdn.example.com/media",
			mockClient: &mockMinioClient{
				presignedGetObjectFunc: func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
					return nil, errors.New("should not presign")
				},
			},
			want: "https://cdn.example.com/media/0b7f6c1e-5a43-4c9e-9d55-0a1e0c5d2f11/my%20file.mp4",
		},
		{
			name: "presigned url",
			mockClient: &mockMinioClient{
				presignedGetObjectFunc: func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
					if expiry != 15*time.Minute {
						return nil, errors.New("unexpected expiry")
					}
					return url.Parse("http://localhost:9000/" + bucketName + "/signed?X-Amz-Signature=abc")
				},
			},
			want: "http://localhost:9000/videos/signed?X-Amz-Signature=abc",
		},
		{
			name: "presign error",
			mockClient: &mockMinioClient{
				presignedGetObjectFunc: func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
					return nil, errors.New("presign failed")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				client:          tt.mockClient,
				presignedClient: tt.mockClient,
				bucket:          "videos",
				publicBaseURL:   tt.publicBaseURL,
				urlExpiry:       15 * time.Minute,
			}

			got, err := client.FileURL(context.Background(), key)

			if (err != nil) != tt.wantErr {
				t.Errorf("FileURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if got != tt.want {
				t.Errorf("FileURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_Ping(t *testing.T) {
	tests := []struct {
		name       string
		mockClient *mockMinioClient
		wantErr    bool
	}{
		{
			name: "successful ping",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return true, nil
				},
			},
			wantErr: false,
		},
		{
			name: "ping error",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, errors.New("connection refused")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				client: tt.mockClient,
				bucket: "videos",
			}

			err := client.Ping(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("Ping() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Bucket(t *testing.T) {
	client := &Client{
		bucket: "test-bucket",
	}

	if got := client.Bucket(); got != "test-bucket" {
		t.Errorf("Bucket() = %v, want %v", got, "test-bucket")
	}
}
