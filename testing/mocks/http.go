package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-bricks-harness/http"
)

// MockClient provides a testify-based mock implementation of http.Client.
//
// Example usage:
//
//	client := &mocks.MockClient{}
//	client.On("Get", mock.Anything, "/get", mock.Anything, mock.Anything).
//		Return(&http.Response{StatusCode: 200}, nil)
type MockClient struct {
	mock.Mock
}

var _ http.Client = (*MockClient)(nil)

// Get implements http.Client
func (m *MockClient) Get(ctx context.Context, path string, params, headers map[string]string) (*http.Response, error) {
	args := m.Called(ctx, path, params, headers)
	return responseArg(args, 0), args.Error(1)
}

// Post implements http.Client
func (m *MockClient) Post(ctx context.Context, path string, body *http.Body, headers map[string]string) (*http.Response, error) {
	args := m.Called(ctx, path, body, headers)
	return responseArg(args, 0), args.Error(1)
}

// BaseURL implements http.Client
func (m *MockClient) BaseURL() string {
	args := m.Called()
	return args.String(0)
}

// Timeout implements http.Client
func (m *MockClient) Timeout() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

// ExpectGet sets up a Get expectation for path with any params and headers
func (m *MockClient) ExpectGet(path string, resp *http.Response, err error) *mock.Call {
	return m.On("Get", mock.Anything, path, mock.Anything, mock.Anything).Return(resp, err)
}

// ExpectPost sets up a Post expectation for path with any body and headers
func (m *MockClient) ExpectPost(path string, resp *http.Response, err error) *mock.Call {
	return m.On("Post", mock.Anything, path, mock.Anything, mock.Anything).Return(resp, err)
}

func responseArg(args mock.Arguments, i int) *http.Response {
	if resp, ok := args.Get(i).(*http.Response); ok {
		return resp
	}
	return nil
}
