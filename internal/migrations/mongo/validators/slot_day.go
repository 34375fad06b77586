package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotDayValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"client_id",
			"date",
			"times",
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

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"times": bson.M{
				"bsonType": "array",
				"maxItems": 96,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"time", "is_booked"},
					"properties": bson.M{
						"time": bson.M{
							"bsonType": "string",
							"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
						},
						"is_booked": bson.M{
							"bsonType": "bool",
						},
						"booking_id": bson.M{
							"bsonType": []string{"string", "null"},
						},
					},
				},
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
