package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"operating_room_id",
			"surgeon_id",
			"start_time",
			"end_time",
			"status",
			"kind",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"operating_room_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"surgeon_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"cancelled",
					"expired",
				},
			},

			"kind": bson.M{
				"bsonType": "string",
				"enum": []string{
					"surgery",
					"consultation",
					"emergency",
					"maintenance",
				},
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"patient_name": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},

			"patient_id": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"idempotency_key": bson.M{
				"bsonType": "string",
			},

			"version": bson.M{
				"bsonType": "long",
				"minimum":  1,
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
