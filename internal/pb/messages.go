package pb

// ShuffleEventKind mirrors the ShuffleEvent.Kind enum in shuffle.proto.
type ShuffleEventKind int32

const (
	ShuffleEventKindKeySet        ShuffleEventKind = 0
	ShuffleEventKindYourTurn      ShuffleEventKind = 1
	ShuffleEventKindRoundComplete ShuffleEventKind = 2
	ShuffleEventKindRoomClosed    ShuffleEventKind = 3
)

type JoinShuffleRoomRequest struct {
	UtxoId    []byte
	Timestamp uint64
	Signature []byte
}

func (m *JoinShuffleRoomRequest) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, 1, m.UtxoId)
	buf = appendVarintField(buf, 2, m.Timestamp)
	buf = appendBytesField(buf, 3, m.Signature)
	return buf, nil
}

func (m *JoinShuffleRoomRequest) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		switch fieldNum {
		case 1:
			m.UtxoId = append([]byte(nil), raw...)
		case 2:
			v, err := decodeVarintField(raw)
			if err != nil {
				return 0, err
			}
			m.Timestamp = v
		case 3:
			m.Signature = append([]byte(nil), raw...)
		}
		return len(raw), nil
	})
}

type JoinShuffleRoomResponse struct {
	ShuffleAccessToken string
}

func (m *JoinShuffleRoomResponse) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendStringField(buf, 1, m.ShuffleAccessToken)
	return buf, nil
}

func (m *JoinShuffleRoomResponse) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		if fieldNum == 1 {
			m.ShuffleAccessToken = string(raw)
		}
		return len(raw), nil
	})
}

type IsReadyForShuffleRequest struct {
	ShuffleAccessToken string
}

func (m *IsReadyForShuffleRequest) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendStringField(buf, 1, m.ShuffleAccessToken)
	return buf, nil
}

func (m *IsReadyForShuffleRequest) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		if fieldNum == 1 {
			m.ShuffleAccessToken = string(raw)
		}
		return len(raw), nil
	})
}

type IsReadyForShuffleResponse struct {
	Ready              bool
	RoomAccessToken    string
	ShuffleAccessToken string
}

func (m *IsReadyForShuffleResponse) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBoolField(buf, 1, m.Ready)
	buf = appendStringField(buf, 2, m.RoomAccessToken)
	buf = appendStringField(buf, 3, m.ShuffleAccessToken)
	return buf, nil
}

func (m *IsReadyForShuffleResponse) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		switch fieldNum {
		case 1:
			v, err := decodeVarintField(raw)
			if err != nil {
				return 0, err
			}
			m.Ready = v != 0
		case 2:
			m.RoomAccessToken = string(raw)
		case 3:
			m.ShuffleAccessToken = string(raw)
		}
		return len(raw), nil
	})
}

// RSAPublicKey is the wire shape of a participant's onion-layering key:
// opaque modulus/exponent byte vectors the coordinator never inspects
// beyond forwarding in the correct order.
type RSAPublicKey struct {
	Modulus  []byte
	Exponent []byte
}

func (m *RSAPublicKey) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, 1, m.Modulus)
	buf = appendBytesField(buf, 2, m.Exponent)
	return buf, nil
}

func (m *RSAPublicKey) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		switch fieldNum {
		case 1:
			m.Modulus = append([]byte(nil), raw...)
		case 2:
			m.Exponent = append([]byte(nil), raw...)
		}
		return len(raw), nil
	})
}

type ConnectShuffleRoomRequest struct {
	RoomAccessToken string
	PublicKey       *RSAPublicKey
}

func (m *ConnectShuffleRoomRequest) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendStringField(buf, 1, m.RoomAccessToken)
	if m.PublicKey != nil {
		sub, err := m.PublicKey.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendBytesField(buf, 2, sub)
	}
	return buf, nil
}

func (m *ConnectShuffleRoomRequest) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		switch fieldNum {
		case 1:
			m.RoomAccessToken = string(raw)
		case 2:
			key := &RSAPublicKey{}
			if err := key.Unmarshal(raw); err != nil {
				return 0, err
			}
			m.PublicKey = key
		}
		return len(raw), nil
	})
}

type ShuffleEvent struct {
	Kind ShuffleEventKind
	// Outputs is the current round's output list: repeated rather than a
	// single blob since the onion shuffle reorders and peels a whole list
	// of N destination addresses, not one (SPEC_FULL §3/§4.5/§6).
	Outputs [][]byte
	// Keys is populated only for ShuffleEventKindKeySet, in decoding-first
	// order (SPEC_FULL §4.5 / §9).
	Keys []*RSAPublicKey
	// RoomAccessToken is populated only for ShuffleEventKindKeySet: the
	// freshly minted room-access token this participant uses to authenticate
	// ShuffleRound/SignShuffleTx for the rest of the protocol.
	RoomAccessToken string
}

func (m *ShuffleEvent) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendVarintField(buf, 1, uint64(m.Kind))
	for _, out := range m.Outputs {
		buf = appendBytesField(buf, 2, out)
	}
	for _, k := range m.Keys {
		sub, err := k.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendBytesField(buf, 3, sub)
	}
	buf = appendStringField(buf, 4, m.RoomAccessToken)
	return buf, nil
}

func (m *ShuffleEvent) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		switch fieldNum {
		case 1:
			v, err := decodeVarintField(raw)
			if err != nil {
				return 0, err
			}
			m.Kind = ShuffleEventKind(v)
		case 2:
			m.Outputs = append(m.Outputs, append([]byte(nil), raw...))
		case 3:
			key := &RSAPublicKey{}
			if err := key.Unmarshal(raw); err != nil {
				return 0, err
			}
			m.Keys = append(m.Keys, key)
		case 4:
			m.RoomAccessToken = string(raw)
		}
		return len(raw), nil
	})
}

type ShuffleRoundRequest struct {
	RoomAccessToken string
	// EncodedOutputs is the full output list this participant re-encrypted
	// and permuted this round (SPEC_FULL §3/§4.5/§6's list<bytes>, not a
	// single opaque blob).
	EncodedOutputs [][]byte
}

func (m *ShuffleRoundRequest) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendStringField(buf, 1, m.RoomAccessToken)
	for _, out := range m.EncodedOutputs {
		buf = appendBytesField(buf, 2, out)
	}
	return buf, nil
}

func (m *ShuffleRoundRequest) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		switch fieldNum {
		case 1:
			m.RoomAccessToken = string(raw)
		case 2:
			m.EncodedOutputs = append(m.EncodedOutputs, append([]byte(nil), raw...))
		}
		return len(raw), nil
	})
}

type ShuffleRoundResponse struct{}

func (m *ShuffleRoundResponse) Marshal() ([]byte, error) { return nil, nil }
func (m *ShuffleRoundResponse) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		return len(raw), nil
	})
}

type SignShuffleTxRequest struct {
	RoomAccessToken string
	Signature       []byte
}

func (m *SignShuffleTxRequest) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendStringField(buf, 1, m.RoomAccessToken)
	buf = appendBytesField(buf, 2, m.Signature)
	return buf, nil
}

func (m *SignShuffleTxRequest) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		switch fieldNum {
		case 1:
			m.RoomAccessToken = string(raw)
		case 2:
			m.Signature = append([]byte(nil), raw...)
		}
		return len(raw), nil
	})
}

type SignShuffleTxResponse struct{}

func (m *SignShuffleTxResponse) Marshal() ([]byte, error) { return nil, nil }
func (m *SignShuffleTxResponse) Unmarshal(data []byte) error {
	return walkFields(data, func(fieldNum, wireType int, raw []byte) (int, error) {
		return len(raw), nil
	})
}
