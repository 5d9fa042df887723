package models

// GenericModelReference is an indirection cell pointing at any referenceable row.
type GenericModelReference struct {
	Base
	ObjPK     int64  `json:"obj_pk"     gorm:"column:obj_pk;not null;uniqueIndex:core__generic_model_reference_model_type_obj_pk_key,priority:2"`
	ModelType string `json:"model_type" gorm:"column:model_type;size:128;not null;uniqueIndex:core__generic_model_reference_model_type_obj_pk_key,priority:1"`
}

func (GenericModelReference) TableName() string { return "core__generic_model_reference" }

// PointsAt reports whether the reference currently targets the given entity.
func (g *GenericModelReference) PointsAt(e Referenceable) bool {
	return g != nil && g.ModelType == e.TableName() && g.ObjPK == e.PrimaryKey()
}
