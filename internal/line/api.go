package line

import (
	"fmt"
	"io"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// API is the subset of the Messaging API used by the channel.
type API interface {
	Reply(replyToken string, msgs []messaging_api.MessageInterface) error
	Push(to string, msgs []messaging_api.MessageInterface) error
	ShowLoading(chatID string) error
	DisplayName(userID string) (string, error)
	// Content streams the binary content of a user message.
	Content(messageID string) (io.ReadCloser, string, error)
}

// sdkAPI adapts the SDK clients to API.
type sdkAPI struct {
	client *messaging_api.MessagingApiAPI
	blob   *messaging_api.MessagingApiBlobAPI
}

// NewAPI creates the SDK-backed API for channelToken.
func NewAPI(channelToken string) (API, error) {
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging blob API client: %w", err)
	}
	return &sdkAPI{client: client, blob: blob}, nil
}

func (a *sdkAPI) Reply(replyToken string, msgs []messaging_api.MessageInterface) error {
	_, err := a.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   msgs,
	})
	return err
}

func (a *sdkAPI) Push(to string, msgs []messaging_api.MessageInterface) error {
	_, err := a.client.PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: msgs,
	}, "")
	return err
}

// ShowLoading shows the loading animation for the longest allowed time,
// which matches the turn deadline.
func (a *sdkAPI) ShowLoading(chatID string) error {
	_, err := a.client.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: 60,
	})
	return err
}

func (a *sdkAPI) DisplayName(userID string) (string, error) {
	profile, err := a.client.GetProfile(userID)
	if err != nil {
		return "", err
	}
	return profile.DisplayName, nil
}

func (a *sdkAPI) Content(messageID string) (io.ReadCloser, string, error) {
	resp, err := a.blob.GetMessageContent(messageID)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
