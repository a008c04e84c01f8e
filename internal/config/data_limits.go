// Package config provides messaging platform limits.
//
// Messenger Send API: https://developers.facebook.com/docs/messenger-platform/reference/send-api
// LINE Messaging API: https://developers.line.biz/en/reference/messaging-api/
package config

// ================================================
// Messenger
// ================================================

const (
	// MessengerMaxTextLength is the Send API limit for a text message, in UTF-8 runes.
	MessengerMaxTextLength = 2000

	// MessengerMaxQuickReplies is the Send API limit for quick replies on one message.
	MessengerMaxQuickReplies = 13

	// MessengerMaxQuickReplyTitle is the maximum quick reply title length.
	MessengerMaxQuickReplyTitle = 20

	// MessengerMaxBodyBytes caps an inbound webhook body.
	MessengerMaxBodyBytes = 1 << 20

	// MessengerDefaultAPIVersion is the Graph API version used when none is configured.
	MessengerDefaultAPIVersion = "v19.0"
)

// ================================================
// LINE
// ================================================

const (
	// LINEMaxMessagesPerReply is the number of messages one reply or push call accepts.
	LINEMaxMessagesPerReply = 5

	// LINEMaxTextMessageLength is the maximum text message length.
	LINEMaxTextMessageLength = 5000

	// LINEMaxQuickReplyItems is the maximum quick reply items per message.
	LINEMaxQuickReplyItems = 13

	// LINEMaxPostbackDataLength is the maximum postback data length.
	LINEMaxPostbackDataLength = 300

	// LINEMaxActionLabel is the maximum quick reply action label length.
	LINEMaxActionLabel = 20
)
