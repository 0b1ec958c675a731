package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSSRFGuard はSSRFGuardの生成をテストする。
func TestNewSSRFGuard(t *testing.T) {
	guard := NewSSRFGuard()
	if guard == nil {
		t.Fatal("NewSSRFGuard() returned nil")
	}
}

// TestNewSafeClient はSSRF防止付きHTTPクライアントの生成をテストする。
func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10*time.Second, 5*1024*1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout, 5*1024*1024)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClientHasTransport(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 5*1024*1024)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はSafeClientがループバックへのリクエストをブロックすることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second, 5*1024*1024)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開されたソースURLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewSSRFGuard()

	publicURLs := []string{
		"https://news.example.com",
		"https://news.example.com/feed.xml",
		"http://blog.example.org/rss",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

// TestValidateURL_BlockedAddresses は内部ネットワークを指すソースURLの拒否をテストする。
// ソース登録で任意URLを受け付けるため、プライベートIP・ループバック・
// リンクローカル・クラウドメタデータIPはすべて登録前に拒否される。
func TestValidateURL_BlockedAddresses(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		category string
		urls     []string
	}{
		{
			category: "private",
			urls: []string{
				"http://10.0.0.1/feed.xml",
				"http://172.16.0.1/feed.xml",
				"http://192.168.1.100/feed.xml",
			},
		},
		{
			category: "loopback",
			urls: []string{
				"http://127.0.0.1/feed.xml",
				"http://localhost/feed.xml",
				"http://[::1]/feed.xml",
			},
		},
		{
			category: "link-local",
			urls: []string{
				"http://169.254.0.1/feed.xml",
			},
		},
		{
			category: "cloud-metadata",
			urls: []string{
				"http://169.254.169.254/latest/meta-data/",                         // AWS
				"http://169.254.169.254/metadata/instance?api-version=2021-02-01", // Azure
				"http://169.254.169.254/computeMetadata/v1/",                      // GCP
			},
		},
		{
			category: "zero-address",
			urls: []string{
				"http://0.0.0.0/feed.xml",
			},
		},
	}

	for _, tt := range tests {
		for _, u := range tt.urls {
			t.Run(tt.category+"/"+u, func(t *testing.T) {
				err := guard.ValidateURL(u)
				if err == nil {
					t.Errorf("ValidateURL(%q) should have returned error (%s)", u, tt.category)
				}
			})
		}
	}
}

// TestValidateURL_InvalidURL は無効なURLや許可外スキームの検証が失敗することをテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewSSRFGuard()

	invalidURLs := []string{
		"",
		"not-a-url",
		"ftp://news.example.com/feed.xml",
		"file:///etc/passwd",
		"gopher://news.example.com",
	}

	for _, u := range invalidURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for invalid URL", u)
			}
		})
	}
}

// TestSSRFGuardInterface はSSRFGuardがインターフェースを正しく実装していることをテストする。
func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
