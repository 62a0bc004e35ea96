package models

import "github.com/google/uuid"

type ItemKind string

const (
	ItemKindFolder ItemKind = "folder"
	ItemKindFile   ItemKind = "file"
)

// Item is the common view over folders and files that the naming and tree
// logic works against. Folder-specific behavior (recursion, cycle checks)
// is the only place implementations are told apart.
type Item interface {
	ItemID() uuid.UUID
	ItemKind() ItemKind
	ItemName() string
	OwnerUserID() uuid.UUID
	ParentID() *uuid.UUID
}

func (f *Folder) ItemID() uuid.UUID      { return f.ID }
func (f *Folder) ItemKind() ItemKind     { return ItemKindFolder }
func (f *Folder) ItemName() string       { return f.Name }
func (f *Folder) OwnerUserID() uuid.UUID { return f.OwnerID }
func (f *Folder) ParentID() *uuid.UUID   { return f.ParentFolderID }

func (f *File) ItemID() uuid.UUID      { return f.ID }
func (f *File) ItemKind() ItemKind     { return ItemKindFile }
func (f *File) ItemName() string       { return f.Name }
func (f *File) OwnerUserID() uuid.UUID { return f.OwnerID }
func (f *File) ParentID() *uuid.UUID   { return f.ParentFolderID }
