package telephony

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go/twiml"
)

const emptyResponse = `<?xml version="1.0" encoding="UTF-8"?><Response/>`

// Document is a voice TwiML response. String renders it with the XML declaration.
type Document []twiml.Element

func (d Document) String() string {
	out, err := twiml.Voice(d)
	if err != nil {
		return emptyResponse
	}
	return out
}

func say(language, text string) *twiml.VoiceSay {
	return &twiml.VoiceSay{Language: language, Message: text}
}

// SayTwiML reads script to the callee.
func SayTwiML(language, script string) Document {
	return Document{say(language, script)}
}

// BridgeTwiML is played to the user when we call them first: press 1 to have the reservation
// read out, any other key (or nothing) connects straight to the restaurant.
func BridgeTwiML(language, publicBaseURL, restaurantPhone string) Document {
	action := fmt.Sprintf("%s/bridge?to=%s", strings.TrimRight(publicBaseURL, "/"), url.QueryEscape(restaurantPhone))
	return Document{
		say(language, "將為您致電餐廳。待會請說出欲訂位資訊，或按 1 由系統先代為唸出。"),
		&twiml.VoiceGather{
			NumDigits:     "1",
			Action:        action,
			Method:        "POST",
			Timeout:       "5",
			InnerElements: []twiml.Element{say(language, "按 1 由系統代唸。其他鍵直接轉接餐廳。")},
		},
		&twiml.VoiceDial{Number: restaurantPhone},
	}
}

// DialTwiML answers the /bridge webhook. Digit "1" announces the transfer first.
func DialTwiML(language, to, digits string) Document {
	var doc Document
	if digits == "1" {
		doc = append(doc, say(language, "即將轉接餐廳。"))
	}
	return append(doc, &twiml.VoiceDial{Number: to})
}
