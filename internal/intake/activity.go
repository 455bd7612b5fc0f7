package intake

import (
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kutbudev/boardroom/pkg/models"
)

func newActivity(cardID uuid.UUID, actorID, kind string, payload interface{}) *models.Activity {
	if actorID == "" {
		actorID = SystemActor
	}
	return &models.Activity{
		CardID:  cardID,
		ActorID: actorID,
		Kind:    kind,
		Payload: mustJSON(payload),
	}
}

// mustJSON encodes v, falling back to an empty object for values sonic rejects
func mustJSON(v interface{}) datatypes.JSON {
	data, err := sonic.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// nullable turns nil pointers into untyped nil so map updates write SQL NULL
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
