package http

import (
	"encoding/json"

	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
)

// inboundToCommand decodes a client envelope. token is set only for setIdentity
// and must be checked by the caller before dispatch.
func inboundToCommand(inbound proto.Inbound) (cmd *core.Command, token string, protoErr *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeSetIdentity:
		var data proto.SetIdentityData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, "", badRequest("setIdentity expects a name")
		}
		return &core.Command{Kind: core.CommandSetIdentity, Identity: data.Name}, data.Token, nil
	case proto.InboundTypeMessage:
		var data proto.MessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, "", badRequest("message expects {text}")
		}
		return &core.Command{Kind: core.CommandBroadcast, Text: data.Text}, "", nil
	case proto.InboundTypePrivateMessage:
		var data proto.PrivateMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, "", badRequest("privateMessage expects {text, receiverId}")
		}
		return &core.Command{Kind: core.CommandDirect, Text: data.Text, Receiver: data.ReceiverID}, "", nil
	case proto.InboundTypeTyping:
		var data proto.TypingData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &data); err != nil {
				return nil, "", badRequest("typing expects {name}")
			}
		}
		return &core.Command{Kind: core.CommandTyping, Identity: data.Name}, "", nil
	case proto.InboundTypeStopTyping:
		return &core.Command{Kind: core.CommandStopTyping}, "", nil
	case proto.InboundTypeMessageSeen:
		var data proto.SeenData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, "", badRequest("messageSeen expects an id or a list of ids")
		}
		return &core.Command{Kind: core.CommandMarkSeen, MessageIDs: data.IDs, Batch: data.Batch}, "", nil
	default:
		return nil, "", badRequest("unknown message type")
	}
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserCount:
		return eventOutbound(proto.EventUserCount, event.Count)
	case core.EventRoster:
		roster := make(map[string]proto.RosterEntry, len(event.Roster))
		for id, entry := range event.Roster {
			roster[id] = proto.RosterEntry{Identity: entry.Identity, Online: entry.Online}
		}
		return eventOutbound(proto.EventUpdateUserList, roster)
	case core.EventMessage:
		return eventOutbound(proto.EventMessage, messageData(event.Message))
	case core.EventPrivateMessage:
		return eventOutbound(proto.EventPrivateMessage, messageData(event.Message))
	case core.EventTyping:
		return eventOutbound(proto.EventTyping, proto.EventTypingData{Name: event.User})
	case core.EventStopTyping:
		return eventOutbound(proto.EventStopTyping, proto.EventTypingData{Name: event.User})
	case core.EventMessageSeen:
		return eventOutbound(proto.EventMessageSeen, proto.EventSeenData{
			MessageID:  event.Ack.MessageID,
			ReceiverID: event.Ack.Receiver,
		})
	case core.EventError:
		if event.Error == nil {
			return errorOutbound(core.ErrCodeInternal, "unknown error")
		}
		return errorOutbound(event.Error.Code, event.Error.Message)
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func errorOutbound(code, msg string) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: code, Msg: msg}}
}

func messageData(msg core.Message) proto.EventMessageData {
	return proto.EventMessageData{
		ID:         msg.ID,
		Text:       msg.Text,
		SenderID:   msg.Author,
		ReceiverID: msg.Receiver,
		Seen:       msg.Seen,
		Date:       msg.CreatedAt,
	}
}
