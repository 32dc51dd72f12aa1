package storage

import (
	"encoding/json"
	"errors"

	"skinnerbox/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeSession(s model.Session) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSession(data []byte) (model.Session, error) {
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return model.Session{}, err
	}
	if err := checkVersion(session.VersionedRecord); err != nil {
		return model.Session{}, err
	}
	return session, nil
}

func EncodeTrial(t model.Trial) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTrial(data []byte) (model.Trial, error) {
	var trial model.Trial
	if err := json.Unmarshal(data, &trial); err != nil {
		return model.Trial{}, err
	}
	if err := checkVersion(trial.VersionedRecord); err != nil {
		return model.Trial{}, err
	}
	return trial, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
