package room

// Frames exchanged with the room service. Every frame carries its kind in "_type";
// requests carry a "rid" that the matching response or Error frame echoes back.

type requestHeader struct {
	Type string `json:"_type"`
	RID  string `json:"rid"`
}

func (h *requestHeader) header() *requestHeader { return h }

type request interface {
	header() *requestHeader
}

type chatRequest struct {
	requestHeader
	Message         string  `json:"message"`
	WhisperTargetID *string `json:"whisper_target_id"`
}

type teleportRequest struct {
	requestHeader
	UserID      string   `json:"user_id"`
	Destination Position `json:"destination"`
}

type floorHitRequest struct {
	requestHeader
	Destination Position `json:"destination"`
}

type emoteRequest struct {
	requestHeader
	EmoteID      string  `json:"emote_id"`
	TargetUserID *string `json:"target_user_id"`
}

type reactionRequest struct {
	requestHeader
	Reaction     string `json:"reaction"`
	TargetUserID string `json:"target_user_id"`
}

type getRoomUsersRequest struct {
	requestHeader
}

type keepaliveRequest struct {
	requestHeader
}

type getRoomUsersResponse struct {
	Content []RoomUser `json:"content"`
}

// inboundFrame holds the fields shared by everything the room service sends
type inboundFrame struct {
	Type    string `json:"_type"`
	RID     string `json:"rid"`
	Message string `json:"message"`
}

type sessionMetadata struct {
	UserID string `json:"user_id"`
}

type chatEvent struct {
	User    User   `json:"user"`
	Message string `json:"message"`
	Whisper bool   `json:"whisper"`
}

const (
	typeChatRequest         = "ChatRequest"
	typeTeleportRequest     = "TeleportRequest"
	typeFloorHitRequest     = "FloorHitRequest"
	typeEmoteRequest        = "EmoteRequest"
	typeReactionRequest     = "ReactionRequest"
	typeGetRoomUsersRequest = "GetRoomUsersRequest"
	typeKeepaliveRequest    = "KeepaliveRequest"

	typeSessionMetadata = "SessionMetadata"
	typeChatEvent       = "ChatEvent"
	typeError           = "Error"
)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
