package twiliowhatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"sort"
	"testing"

	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(WithFromWhats("+14155238886")); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); !errors.Is(err, ErrMissingFrom) {
		t.Errorf("expected ErrMissingFrom, got %v", err)
	}
}

func TestNewClientReadsEnvironment(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_FROM_NUMBER", "+14155238886")

	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("fromWhats = %q", c.fromWhats)
	}
}

func TestSendMessageAddsChannelPrefix(t *testing.T) {
	api := &fakeAPI{}
	c := &Client{api: api, fromWhats: "whatsapp:+14155238886"}

	if err := c.SendMessage(context.Background(), "+919800000000", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("expected one request, got %d", len(api.params))
	}
	p := api.params[0]
	if *p.To != "whatsapp:+919800000000" || *p.From != "whatsapp:+14155238886" || *p.Body != "hello" {
		t.Errorf("unexpected params to=%q from=%q body=%q", *p.To, *p.From, *p.Body)
	}
}

func TestSendMessageWrapsError(t *testing.T) {
	cause := errors.New("rate limited")
	c := &Client{api: &fakeAPI{err: cause}, fromWhats: "whatsapp:+1"}
	if err := c.SendMessage(context.Background(), "+2", "x"); !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestAddress(t *testing.T) {
	if got := Address("+919800000000"); got != "whatsapp:+919800000000" {
		t.Errorf("Address = %q", got)
	}
	if got := Address("whatsapp:+1"); got != "whatsapp:+1" {
		t.Errorf("Address must not double the prefix, got %q", got)
	}
	if got := StripAddress("whatsapp:+919800000000"); got != "+919800000000" {
		t.Errorf("StripAddress = %q", got)
	}
}

func sign(token, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := url
	for _, k := range keys {
		data += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidSignature(t *testing.T) {
	c := &Client{validator: twilioClient.NewRequestValidator("secret")}
	url := "https://bot.example.org/webhook/twilio"
	params := map[string]string{"From": "whatsapp:+919800000000", "Body": "1", "MessageSid": "SM1"}

	if !c.ValidSignature(url, params, sign("secret", url, params)) {
		t.Error("expected signature to validate")
	}
	if c.ValidSignature(url, params, sign("other", url, params)) {
		t.Error("signature with wrong token must not validate")
	}
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient()
	if err := mock.SendMessage(context.Background(), "12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := mock.Messages()
	if len(msgs) != 1 || msgs[0].Body != "Hello Test" {
		t.Errorf("unexpected messages: %+v", msgs)
	}

	mock.SendErr = errors.New("down")
	if err := mock.SendMessage(context.Background(), "12345", "again"); err == nil {
		t.Error("expected SendErr")
	}
}
