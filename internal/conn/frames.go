package conn

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/ktao87/goofish-agent/internal/wire"
)

const (
	lwpRegister  = "/reg"
	lwpAckDiff   = "/r/SyncStatus/ackDiff"
	lwpHeartbeat = "/!"
	lwpSendChat  = "/r/MessageSend/sendByReceiverScope"

	registerAppKey = "444e9908a51d1cb236a27862abc769c9"
	registerUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36 DingTalk(2.1.5) OS(Windows/10) Browser(Chrome/133.0.0.0) DingWeb/2.1.5 IMPaaS DingWeb/2.1.5"
)

// frame is the generic outbound envelope. Headers are flat string
// pairs; Body varies per lwp endpoint.
type frame struct {
	LWP     string            `json:"lwp,omitempty"`
	Code    int               `json:"code,omitempty"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
}

// registerFrame builds the initial /reg frame carrying the access
// token and device id obtained before dialing.
func registerFrame(token, deviceID string) frame {
	return frame{
		LWP: lwpRegister,
		Headers: map[string]string{
			"cache-header": "app-key token ua wv",
			"app-key":      registerAppKey,
			"token":        token,
			"ua":           registerUA,
			"dt":           "j",
			"wv":           "im:3,au:3,sy:6",
			"sync":         "0,0;0;0;",
			"did":          deviceID,
			"mid":          GenerateMID(),
		},
	}
}

// ackDiffFrame builds the sync-status ack sent right after
// registration so the server starts pushing from the current point.
func ackDiffFrame(now time.Time) frame {
	ms := now.UnixMilli()
	return frame{
		LWP:     lwpAckDiff,
		Headers: map[string]string{"mid": GenerateMID()},
		Body: []map[string]any{{
			"pipeline":    "sync",
			"tooLong2Tag": "PNM,1",
			"channel":     "sync",
			"topic":       "sync",
			"highPts":     0,
			"pts":         ms * 1000,
			"seq":         0,
			"timestamp":   ms,
		}},
	}
}

func heartbeatFrame() frame {
	return frame{
		LWP:     lwpHeartbeat,
		Headers: map[string]string{"mid": GenerateMID()},
	}
}

// ackFrame echoes a server frame's routing headers back with code 200.
// mid and sid are always present (sid may be empty); app-key, ua and
// dt are echoed only when the server sent them.
func ackFrame(env *wire.Envelope) frame {
	headers := map[string]string{
		"mid": env.Headers["mid"],
		"sid": env.Headers["sid"],
	}
	if headers["mid"] == "" {
		headers["mid"] = GenerateMID()
	}
	for _, k := range []string{"app-key", "ua", "dt"} {
		if v, ok := env.Headers[k]; ok {
			headers[k] = v
		}
	}
	return frame{Code: 200, Headers: headers}
}

// chatFrame builds an outbound text message addressed to both the
// buyer and the seller's own id, scoped to the @goofish domain. The
// payload itself travels base64-encoded inside the custom content.
func chatFrame(chatID, toUserID, ownUserID, text string) (frame, error) {
	payload, err := json.Marshal(map[string]any{
		"contentType": 1,
		"text":        map[string]string{"text": text},
	})
	if err != nil {
		return frame{}, err
	}
	return frame{
		LWP:     lwpSendChat,
		Headers: map[string]string{"mid": GenerateMID()},
		Body: []any{
			map[string]any{
				"uuid":             GenerateUUID(),
				"cid":              chatID + "@goofish",
				"conversationType": 1,
				"content": map[string]any{
					"contentType": 101,
					"custom": map[string]any{
						"type": 1,
						"data": base64.StdEncoding.EncodeToString(payload),
					},
				},
				"redPointPolicy":       0,
				"extension":            map[string]any{"extJson": "{}"},
				"ctx":                  map[string]any{"appVersion": "1.0", "platform": "web"},
				"mtags":                map[string]any{},
				"msgReadStatusSetting": 1,
			},
			map[string]any{
				"actualReceivers": []string{
					toUserID + "@goofish",
					ownUserID + "@goofish",
				},
			},
		},
	}, nil
}
