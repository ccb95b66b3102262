package job

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "env": {"$ref": "#/definitions/env"},
    "pre": {"$ref": "#/definitions/steps"},
    "steps": {"$ref": "#/definitions/steps"},
    "post": {"$ref": "#/definitions/steps"}
  },
  "definitions": {
    "env": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "steps": {
      "type": "array",
      "items": {"$ref": "#/definitions/step"}
    },
    "step": {
      "type": "object",
      "additionalProperties": false,
      "required": ["name", "command"],
      "properties": {
        "name": {"type": "string"},
        "command": {
          "oneOf": [
            {"type": "string"},
            {"type": "array", "items": {"type": "string"}}
          ]
        },
        "shell": {"type": "boolean"},
        "working_directory": {"type": "string"},
        "always_run": {"type": "boolean"},
        "env": {"$ref": "#/definitions/env"},
        "timeout": {"type": "string"},
        "template": {"type": "boolean"}
      }
    }
  }
}`
