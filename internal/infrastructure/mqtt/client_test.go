package mqtt

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/samuelsono/nelo-fms/internal/infrastructure/config"
)

func TestParseDataTopic(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		wantIMEI string
		wantOK   bool
	}{
		{"unit data topic", "867730050000000/data", "867730050000000", true},
		{"extra segments tolerated", "867730050000000/data/v2", "867730050000000", true},
		{"single segment", "867730050000000", "", false},
		{"empty topic", "", "", false},
		{"empty first segment", "/data", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imei, ok := ParseDataTopic(tt.topic)
			if ok != tt.wantOK || imei != tt.wantIMEI {
				t.Errorf("ParseDataTopic(%q) = (%q, %v), want (%q, %v)",
					tt.topic, imei, ok, tt.wantIMEI, tt.wantOK)
			}
		})
	}
}

func TestTopicBuilders(t *testing.T) {
	if got := AllUnitData(); got != "+/data" {
		t.Errorf("AllUnitData() = %q, want +/data", got)
	}
	if got := UnitData("867730050000000"); got != "867730050000000/data" {
		t.Errorf("UnitData() = %q, want 867730050000000/data", got)
	}
}

func TestBuildClientOptions_PlainTCP(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 1883, ClientID: "nelofms-api"},
		QoS:    1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 5,
			MaxDelay:     60,
		},
	}

	opts, err := buildClientOptions(cfg)
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("broker URL = %v, want tcp://broker.local:1883", opts.Servers)
	}
	if !strings.HasPrefix(opts.ClientID, "nelofms-api-") {
		t.Errorf("ClientID = %q, want nelofms-api- prefix with random suffix", opts.ClientID)
	}
	if opts.ConnectRetryInterval != 5*time.Second {
		t.Errorf("ConnectRetryInterval = %v, want 5s", opts.ConnectRetryInterval)
	}
	if opts.MaxReconnectInterval != 60*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 60s", opts.MaxReconnectInterval)
	}
	if !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("expected auto-reconnect and connect-retry enabled")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_UniqueClientIDs(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{Host: "broker.local", Port: 1883, ClientID: "nelofms-api"},
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 1},
	}

	a, err := buildClientOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := buildClientOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a.ClientID == b.ClientID {
		t.Errorf("two option sets share client ID %q", a.ClientID)
	}
}

func TestNewTLSConfig_MissingCertificate(t *testing.T) {
	_, err := newTLSConfig(config.MQTTTLSConfig{
		Enabled:  true,
		CertFile: "does/not/exist.crt",
		KeyFile:  "does/not/exist.key",
	})
	if !errors.Is(err, ErrTLSConfig) {
		t.Errorf("newTLSConfig() error = %v, want ErrTLSConfig", err)
	}
}

func TestNewTLSConfig_BadCAFile(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCertificate(t, dir)

	caFile := filepath.Join(dir, "ca.crt")
	if err := os.WriteFile(caFile, []byte("not a pem file"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := newTLSConfig(config.MQTTTLSConfig{
		Enabled:  true,
		CAFile:   caFile,
		CertFile: certFile,
		KeyFile:  keyFile,
	})
	if !errors.Is(err, ErrTLSConfig) {
		t.Errorf("newTLSConfig() error = %v, want ErrTLSConfig", err)
	}
}

func TestNewTLSConfig_LoadsMutualTLS(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCertificate(t, dir)

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatal(err)
	}
	caFile := filepath.Join(dir, "ca.crt")
	if err := os.WriteFile(caFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	tlsConfig, err := newTLSConfig(config.MQTTTLSConfig{
		Enabled:  true,
		CAFile:   caFile,
		CertFile: certFile,
		KeyFile:  keyFile,
	})
	if err != nil {
		t.Fatalf("newTLSConfig() error = %v", err)
	}

	if len(tlsConfig.Certificates) != 1 {
		t.Errorf("loaded %d client certificates, want 1", len(tlsConfig.Certificates))
	}
	if tlsConfig.RootCAs == nil {
		t.Error("RootCAs pool not populated from CA file")
	}
	if tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify must default to off")
	}
}

func TestNewTLSConfig_InsecureSkipVerifyOptIn(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCertificate(t, dir)

	tlsConfig, err := newTLSConfig(config.MQTTTLSConfig{
		Enabled:            true,
		CertFile:           certFile,
		KeyFile:            keyFile,
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("newTLSConfig() error = %v", err)
	}
	if !tlsConfig.InsecureSkipVerify {
		t.Error("explicit opt-in must propagate to tls.Config")
	}
}

func TestCredentialsPresent(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCertificate(t, dir)

	tests := []struct {
		name string
		tls  config.MQTTTLSConfig
		want bool
	}{
		{"tls disabled", config.MQTTTLSConfig{Enabled: false}, true},
		{"both present", config.MQTTTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile}, true},
		{"cert missing", config.MQTTTLSConfig{Enabled: true, CertFile: filepath.Join(dir, "nope.crt"), KeyFile: keyFile}, false},
		{"key missing", config.MQTTTLSConfig{Enabled: true, CertFile: certFile, KeyFile: filepath.Join(dir, "nope.key")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CredentialsPresent(config.MQTTConfig{TLS: tt.tls}); got != tt.want {
				t.Errorf("CredentialsPresent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t/data", []byte("x"), 7, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 7 error = %v, want ErrInvalidQoS", err)
	}
	oversized := bytes.Repeat([]byte("a"), maxPayloadSize+1)
	if err := c.Publish("t/data", oversized, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload error = %v, want ErrPublishFailed", err)
	}
	if err := c.Publish("t/data", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("+/data", 7, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 7 error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("+/data", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("+/data", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected subscribe error = %v, want ErrNotConnected", err)
	}
	if c.HasSubscription("+/data") {
		t.Error("HasSubscription(+/data) = true after failed subscribes, want false")
	}
}

func TestNoteReconnectAttempt_CapsRetries(t *testing.T) {
	c := &Client{cfg: config.MQTTConfig{
		Reconnect: config.MQTTReconnectConfig{MaxAttempts: 3},
	}}
	opts := pahomqtt.NewClientOptions()
	opts.SetAutoReconnect(true)

	c.noteReconnectAttempt(opts)
	c.noteReconnectAttempt(opts)
	if !opts.AutoReconnect {
		t.Fatal("gave up before reaching the attempt cap")
	}

	c.noteReconnectAttempt(opts)
	if opts.AutoReconnect {
		t.Error("still retrying past the attempt cap")
	}

	// A successful connect resets the counter.
	c.handleConnect()
	opts.SetAutoReconnect(true)
	c.noteReconnectAttempt(opts)
	c.noteReconnectAttempt(opts)
	if !opts.AutoReconnect {
		t.Error("counter not reset after successful connect")
	}
}

func TestNoteReconnectAttempt_UnlimitedByDefault(t *testing.T) {
	c := &Client{cfg: config.MQTTConfig{}}
	opts := pahomqtt.NewClientOptions()
	opts.SetAutoReconnect(true)

	for i := 0; i < 100; i++ {
		c.noteReconnectAttempt(opts)
	}
	if !opts.AutoReconnect {
		t.Error("zero max_attempts must retry indefinitely")
	}
}

// writeTestCertificate generates a self-signed certificate and key pair
// under dir and returns their paths.
func writeTestCertificate(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "nelofms-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	certFile = filepath.Join(dir, "client.crt")
	keyFile = filepath.Join(dir, "client.key")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}
