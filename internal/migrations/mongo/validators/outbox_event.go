package validators

import "go.mongodb.org/mongo-driver/bson"

var OutboxEventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"event_id",
			"event_type",
			"aggregate_id",
			"aggregate_type",
			"status",
			"retry_count",
			"next_retry_at",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"event_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"event_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"reservation.created",
					"reservation.updated",
					"reservation.cancelled",
					"reservation.expired",
				},
			},

			"aggregate_id": bson.M{
				"bsonType": "string",
			},

			"aggregate_type": bson.M{
				"bsonType": "string",
			},

			"payload": bson.M{
				"bsonType": "object",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"processing",
					"completed",
					"failed",
				},
			},

			"retry_count": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"next_retry_at": bson.M{
				"bsonType": "date",
			},

			"processed_at": bson.M{
				"bsonType": "date",
			},

			"error_message": bson.M{
				"bsonType": "string",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
