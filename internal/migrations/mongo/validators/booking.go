package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"client_id",
			"slot_day_id",
			"date",
			"selected_time",
			"user_phone",
			"status",
			"source",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"client_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"slot_day_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"selected_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"user_name": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"user_phone": bson.M{
				"bsonType": "string",
				"pattern":  `^\+?[0-9]{7,15}$`,
			},

			"status": bson.M{
				"enum": []string{"pending", "confirmed", "cancelled", "completed"},
			},

			"source": bson.M{
				"enum": []string{"whatsapp", "manual"},
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
